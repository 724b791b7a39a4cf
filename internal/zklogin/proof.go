package zklogin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/prover"
	"go.uber.org/zap"
)

// Prover produces a zkLogin proof for a token bound to an ephemeral key
type Prover interface {
	Prove(ctx context.Context, req prover.Request) (*prover.Proof, error)
}

// ProofRequest is everything the proving oracle needs
type ProofRequest struct {
	JWT               string
	ExtendedPublicKey string
	MaxEpoch          uint64
	Randomness        string
	Salt              string
}

// ProofAcquirer makes exactly one prover call per request and classifies its failure
type ProofAcquirer struct {
	prover  Prover
	metrics *Metrics
	logger  *zap.Logger
}

// NewProofAcquirer creates a ProofAcquirer
func NewProofAcquirer(p Prover, metrics *Metrics, logger *zap.Logger) *ProofAcquirer {
	return &ProofAcquirer{prover: p, metrics: metrics, logger: logger}
}

// Request asks the oracle for a proof. It writes no state.
func (a *ProofAcquirer) Request(ctx context.Context, req ProofRequest) (*prover.Proof, error) {
	start := time.Now()
	proof, err := a.prover.Prove(ctx, prover.Request{
		JWT:                        req.JWT,
		ExtendedEphemeralPublicKey: req.ExtendedPublicKey,
		MaxEpoch:                   req.MaxEpoch,
		JWTRandomness:              req.Randomness,
		Salt:                       req.Salt,
		KeyClaimName:               prover.DefaultKeyClaimName,
	})
	a.metrics.observeProof(time.Since(start), err)

	if err != nil {
		mapped := classifyProverError(err)
		a.logger.Warn("proof request failed", zap.Uint64("max_epoch", req.MaxEpoch), zap.Error(mapped))
		return nil, mapped
	}
	return proof, nil
}

func classifyProverError(err error) error {
	switch {
	case errors.Is(err, prover.ErrRejected):
		var statusErr *prover.StatusError
		if errors.As(err, &statusErr) {
			return fmt.Errorf("%w: %s", ErrProofRejected, statusErr.Message)
		}
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	case errors.Is(err, prover.ErrMalformed):
		return fmt.Errorf("%w: %v", ErrProofMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrProverUnavailable, err)
	}
}
