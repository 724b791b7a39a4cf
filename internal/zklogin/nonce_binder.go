package zklogin

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
)

// RandomnessFunc produces a decimal 128-bit random value
type RandomnessFunc func() (string, error)

// Binding ties a session's ephemeral key and window to the OAuth nonce
type Binding struct {
	Randomness string
	Nonce      string
}

// NonceBinder derives and stores the OAuth nonce
type NonceBinder struct {
	tiers  session.Tiers
	random RandomnessFunc
}

// NewNonceBinder creates a NonceBinder. A nil random uses crypto/rand.
func NewNonceBinder(tiers session.Tiers, random RandomnessFunc) *NonceBinder {
	if random == nil {
		random = zkcrypto.GenerateRandomness
	}
	return &NonceBinder{tiers: tiers, random: random}
}

// Derive draws fresh randomness and computes the nonce for a key and window
func (b *NonceBinder) Derive(suiPublicKey []byte, maxEpoch uint64) (Binding, error) {
	randomness, err := b.random()
	if err != nil {
		return Binding{}, err
	}
	nonce, err := zkcrypto.GenerateNonce(suiPublicKey, maxEpoch, randomness)
	if err != nil {
		return Binding{}, fmt.Errorf("derive nonce: %w", err)
	}
	return Binding{Randomness: randomness, Nonce: nonce}, nil
}

// Save persists a binding to both tiers
func (b *NonceBinder) Save(ctx context.Context, sessionID string, binding Binding) error {
	if err := b.tiers.SetBoth(ctx, sessionID, slotRandomness, binding.Randomness); err != nil {
		return fmt.Errorf("persist randomness: %w", err)
	}
	if err := b.tiers.SetBoth(ctx, sessionID, slotNonce, binding.Nonce); err != nil {
		return fmt.Errorf("persist nonce: %w", err)
	}
	return nil
}

// Randomness reads back the session's randomness
func (b *NonceBinder) Randomness(ctx context.Context, sessionID string) (string, error) {
	return b.read(ctx, sessionID, slotRandomness)
}

// Nonce reads back the session's nonce
func (b *NonceBinder) Nonce(ctx context.Context, sessionID string) (string, error) {
	return b.read(ctx, sessionID, slotNonce)
}

func (b *NonceBinder) read(ctx context.Context, sessionID, slot string) (string, error) {
	v, err := b.tiers.GetFirst(ctx, sessionID, slot)
	if errors.Is(err, session.ErrNotFound) {
		return "", fmt.Errorf("%w: no %s", ErrSessionNotFound, slot)
	}
	return v, err
}
