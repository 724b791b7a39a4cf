package zklogin

import (
	"encoding/base64"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/prover"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
)

// Signer produces the ephemeral user signature over transaction bytes
type Signer interface {
	SignTransaction(txBytes []byte) (string, error)
}

// AssembleInput carries everything needed for a composite signature.
// MaxEpoch must be the value the proof was generated for.
type AssembleInput struct {
	TxBytes      []byte
	Signer       Signer
	Proof        *prover.Proof
	Claims       *Claims
	Salt         string
	MaxEpoch     uint64
	CurrentEpoch uint64
}

// CompositeSignature is the serialized zkLogin signature handed to the node
type CompositeSignature struct {
	Serialized string
	MaxEpoch   uint64
}

// Assemble builds the zkLogin signature for one transaction.
// Inputs are validated before the signer is invoked.
func Assemble(in AssembleInput) (*CompositeSignature, error) {
	switch {
	case in.Proof == nil:
		return nil, fmt.Errorf("%w: missing proof", ErrIncompleteInputs)
	case in.Signer == nil:
		return nil, fmt.Errorf("%w: missing ephemeral key", ErrIncompleteInputs)
	case in.Claims == nil || in.Claims.Subject == "" || in.Claims.Audience == "":
		return nil, fmt.Errorf("%w: missing claims", ErrIncompleteInputs)
	case in.Salt == "":
		return nil, fmt.Errorf("%w: missing salt", ErrIncompleteInputs)
	case len(in.TxBytes) == 0:
		return nil, fmt.Errorf("%w: missing transaction bytes", ErrIncompleteInputs)
	}
	if IsExpired(in.MaxEpoch, in.CurrentEpoch) {
		return nil, fmt.Errorf("%w: current epoch %d > max epoch %d", ErrExpiredWindow, in.CurrentEpoch, in.MaxEpoch)
	}

	seed, err := zkcrypto.AddressSeed(in.Salt, zkcrypto.KeyClaimName, in.Claims.Subject, in.Claims.Audience)
	if err != nil {
		return nil, fmt.Errorf("%w: address seed: %v", ErrIncompleteInputs, err)
	}

	userSig, err := in.Signer.SignTransaction(in.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	userSigBytes, err := base64.StdEncoding.DecodeString(userSig)
	if err != nil {
		return nil, fmt.Errorf("decode user signature: %w", err)
	}

	sig := sui.ZkLoginSignature{
		Inputs: sui.ZkLoginInputs{
			ProofPoints:      in.Proof.ProofPoints,
			IssBase64Details: in.Proof.IssBase64Details,
			HeaderBase64:     in.Proof.HeaderBase64,
			AddressSeed:      seed.String(),
		},
		MaxEpoch:      in.MaxEpoch,
		UserSignature: userSigBytes,
	}
	serialized, err := sig.Serialize()
	if err != nil {
		return nil, err
	}
	return &CompositeSignature{Serialized: serialized, MaxEpoch: in.MaxEpoch}, nil
}
