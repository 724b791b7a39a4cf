package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/errors"
	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"go.uber.org/zap"
)

// BalanceReader queries coin balances from the node
type BalanceReader interface {
	Balance(ctx context.Context, owner string) (*sui.Balance, error)
}

// Funder requests test gas for an address
type Funder interface {
	Request(ctx context.Context, recipient string) error
}

// Service exposes read-only account information for derived addresses
type Service struct {
	node   BalanceReader
	faucet Funder
	logger *zap.Logger
}

// NewService creates a new account service. A nil faucet disables funding.
func NewService(node BalanceReader, faucet Funder, logger *zap.Logger) *Service {
	return &Service{
		node:   node,
		faucet: faucet,
		logger: logger,
	}
}

// AccountBalance is the SUI balance of one address
type AccountBalance struct {
	Address   string
	Mist      *big.Int
	CoinCount int
}

// Balance returns the SUI balance of address
func (s *Service) Balance(ctx context.Context, address string) (*AccountBalance, error) {
	// 1. Normalize address
	normalized, ok := sui.NormalizeAddress(address)
	if !ok {
		return nil, errors.InvalidInput("Invalid Sui address")
	}

	// 2. Query node
	balance, err := s.node.Balance(ctx, normalized)
	if err != nil {
		s.logger.Error("failed to query balance", logfield.Address(normalized), zap.Error(err))
		return nil, errors.ChainError("Failed to query balance").WithError(err)
	}

	// 3. Parse total (u128 as decimal string)
	mist, ok := new(big.Int).SetString(balance.TotalBalance, 10)
	if !ok {
		return nil, errors.UpstreamError(fmt.Sprintf("Node returned invalid balance %q", balance.TotalBalance))
	}

	return &AccountBalance{
		Address:   normalized,
		Mist:      mist,
		CoinCount: balance.CoinObjectCount,
	}, nil
}

// RequestFunds asks the faucet to fund address
func (s *Service) RequestFunds(ctx context.Context, address string) (string, error) {
	if s.faucet == nil {
		return "", errors.NotFound("Faucet")
	}
	normalized, ok := sui.NormalizeAddress(address)
	if !ok {
		return "", errors.InvalidInput("Invalid Sui address")
	}

	if err := s.faucet.Request(ctx, normalized); err != nil {
		s.logger.Warn("faucet request failed", logfield.Address(normalized), zap.Error(err))
		return "", errors.UpstreamError("Faucet request failed").WithError(err)
	}
	return normalized, nil
}
