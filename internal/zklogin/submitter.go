package zklogin

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"go.uber.org/zap"
)

// Node is the subset of the full-node API the flow uses
type Node interface {
	EpochSource
	ExecuteTransaction(ctx context.Context, txBytes []byte, signatures ...string) (*sui.ExecutionResult, error)
	SelectGasCoin(ctx context.Context, owner string, need *big.Int) (*sui.Coin, error)
	TransferSuiTx(ctx context.Context, signer, coinID string, gasBudget uint64, recipient string, amount uint64) ([]byte, error)
}

// Execution is a transaction the node accepted and executed
type Execution struct {
	Digest string `json:"digest"`
}

// TransactionSubmitter forwards signed transactions to the node. It never retries.
type TransactionSubmitter struct {
	node    Node
	epochs  *EpochWindow
	metrics *Metrics
	logger  *zap.Logger
}

// NewTransactionSubmitter creates a TransactionSubmitter
func NewTransactionSubmitter(node Node, epochs *EpochWindow, metrics *Metrics, logger *zap.Logger) *TransactionSubmitter {
	return &TransactionSubmitter{
		node:    node,
		epochs:  epochs,
		metrics: metrics,
		logger:  logger,
	}
}

// Submit re-checks the epoch window and executes txBytes under sig
func (s *TransactionSubmitter) Submit(ctx context.Context, txBytes []byte, sig *CompositeSignature) (*Execution, error) {
	if sig == nil || sig.Serialized == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrIncompleteInputs)
	}
	if _, err := s.epochs.Check(ctx, sig.MaxEpoch); err != nil {
		return nil, err
	}

	res, err := s.node.ExecuteTransaction(ctx, txBytes, sig.Serialized)
	if err != nil {
		s.metrics.observeSubmission(false)
		return nil, submissionError(err)
	}

	s.metrics.observeSubmission(true)
	s.logger.Info("transaction submitted", zap.String("digest", res.Digest))
	return &Execution{Digest: res.Digest}, nil
}

func submissionError(err error) error {
	subErr := &SubmissionError{Err: err}
	var failure *sui.ExecutionFailure
	if errors.As(err, &failure) {
		subErr.Digest = failure.Digest
	}
	if reason, ok := sui.RejectionReason(err); ok {
		subErr.Reason = reason
	} else {
		subErr.Reason = err.Error()
	}
	return subErr
}
