package sui

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// Ed25519Flag is the signature scheme flag for Ed25519
const Ed25519Flag byte = 0x00

// ErrInvalidExport is returned when exported key material cannot be decoded
var ErrInvalidExport = errors.New("invalid exported private key")

// Keypair is an Ed25519 signing key
type Keypair struct {
	priv ed25519.PrivateKey
}

// GenerateKeypair creates a fresh random keypair
func GenerateKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromExport rebuilds a keypair from the output of Export
func KeypairFromExport(exported string) (*Keypair, error) {
	seed, err := base64.StdEncoding.DecodeString(exported)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidExport
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Export encodes the 32-byte private seed as base64
func (k *Keypair) Export() string {
	return base64.StdEncoding.EncodeToString(k.priv.Seed())
}

// PublicKey returns the raw 32-byte public key
func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// SuiPublicKey returns the scheme flag followed by the raw public key
func (k *Keypair) SuiPublicKey() []byte {
	pub := k.PublicKey()
	out := make([]byte, 0, 1+len(pub))
	out = append(out, Ed25519Flag)
	return append(out, pub...)
}

// SignTransaction signs transaction bytes under the transaction intent and
// returns the serialized signature (flag || signature || public key) as base64.
func (k *Keypair) SignTransaction(txBytes []byte) (string, error) {
	if len(txBytes) == 0 {
		return "", errors.New("empty transaction bytes")
	}
	digest := IntentDigest(IntentScopeTransactionData, txBytes)
	sig := ed25519.Sign(k.priv, digest[:])

	pub := k.PublicKey()
	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, Ed25519Flag)
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out), nil
}
