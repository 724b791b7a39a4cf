package zklogin

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/sui"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"go.uber.org/zap"
)

// KeypairFunc produces a new ephemeral keypair
type KeypairFunc func() (*sui.Keypair, error)

// KeyVault owns the ephemeral keypair of each session
type KeyVault struct {
	tiers    session.Tiers
	generate KeypairFunc
	logger   *zap.Logger
}

// NewKeyVault creates a KeyVault. A nil generate uses crypto/rand.
func NewKeyVault(tiers session.Tiers, generate KeypairFunc, logger *zap.Logger) *KeyVault {
	if generate == nil {
		generate = sui.GenerateKeypair
	}
	return &KeyVault{tiers: tiers, generate: generate, logger: logger}
}

// Generate returns a fresh keypair without storing it
func (v *KeyVault) Generate() (*sui.Keypair, error) {
	return v.generate()
}

// Save writes kp to both tiers, replacing any previous key
func (v *KeyVault) Save(ctx context.Context, sessionID string, kp *sui.Keypair) error {
	if err := v.tiers.SetBoth(ctx, sessionID, slotEphemeralKey, kp.Export()); err != nil {
		return fmt.Errorf("persist ephemeral key: %w", err)
	}
	if err := v.tiers.SetBoth(ctx, sessionID, slotExtendedPublicKey, zkcrypto.ExtendedPublicKey(kp.SuiPublicKey())); err != nil {
		return fmt.Errorf("persist extended public key: %w", err)
	}

	v.logger.Info("ephemeral key stored", logfield.Session(sessionID))
	return nil
}

// Load returns the session's keypair, preferring the volatile tier
func (v *KeyVault) Load(ctx context.Context, sessionID string) (*sui.Keypair, error) {
	exported, err := v.tiers.GetFirst(ctx, sessionID, slotEphemeralKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: no ephemeral key", ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	kp, err := sui.KeypairFromExport(exported)
	if err != nil {
		v.logger.Warn("stored ephemeral key is unreadable", logfield.Session(sessionID))
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return kp, nil
}
