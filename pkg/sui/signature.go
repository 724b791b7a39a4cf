package sui

import (
	"encoding/base64"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/fardream/go-bcs/bcs"
)

// ProofPoints are the Groth16 proof points returned by the prover
type ProofPoints struct {
	A []string   `json:"a"`
	B [][]string `json:"b"`
	C []string   `json:"c"`
}

// IssBase64Details locates the issuer claim inside the base64 JWT payload
type IssBase64Details struct {
	Value     string `json:"value"`
	IndexMod4 uint8  `json:"indexMod4"`
}

// ZkLoginInputs are the public proof inputs together with the address seed
type ZkLoginInputs struct {
	ProofPoints      ProofPoints      `json:"proofPoints"`
	IssBase64Details IssBase64Details `json:"issBase64Details"`
	HeaderBase64     string           `json:"headerBase64"`
	AddressSeed      string           `json:"addressSeed"`
}

// ZkLoginSignature is the BCS layout of a zkLogin authenticator.
// Field order is the wire order.
type ZkLoginSignature struct {
	Inputs        ZkLoginInputs
	MaxEpoch      uint64
	UserSignature []byte
}

// Bytes returns the BCS encoding without the scheme flag
func (s *ZkLoginSignature) Bytes() ([]byte, error) {
	b, err := bcs.Marshal(*s)
	if err != nil {
		return nil, fmt.Errorf("bcs encode zklogin signature: %w", err)
	}
	return b, nil
}

// Serialize returns base64(flag || BCS), the form accepted by the node
func (s *ZkLoginSignature) Serialize() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	out := make([]byte, 0, 1+len(b))
	out = append(out, zkcrypto.ZkLoginFlag)
	out = append(out, b...)
	return base64.StdEncoding.EncodeToString(out), nil
}
