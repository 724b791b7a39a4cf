package zklogin

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/internal/session"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Identity is an OAuth principal as seen by one client application
type Identity struct {
	Issuer   string `json:"issuer"`
	Audience string `json:"audience"`
	Subject  string `json:"subject"`
}

// Hash returns a stable hex key for the identity that does not reveal its fields
func (i Identity) Hash() string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{i.Issuer, i.Audience, i.Subject} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (i Identity) valid() bool {
	return i.Issuer != "" && i.Audience != "" && i.Subject != ""
}

// SaltRepository persists one salt per identity
type SaltRepository interface {
	// Get returns ErrSaltNotFound when no salt is stored
	Get(ctx context.Context, id Identity) (string, error)
	// Insert stores salt unless one already exists and returns the value now stored
	Insert(ctx context.Context, id Identity, salt string) (string, error)
	Delete(ctx context.Context, id Identity) error
}

// SaltRegistry hands out the salt of an identity, creating it on first use.
// A stored salt is never regenerated: losing it loses the address.
type SaltRegistry struct {
	repo        SaltRepository
	random      RandomnessFunc
	addressOpts []zkcrypto.AddressOption
	logger      *zap.Logger
}

// NewSaltRegistry creates a SaltRegistry. A nil random uses crypto/rand.
func NewSaltRegistry(repo SaltRepository, random RandomnessFunc, logger *zap.Logger, addressOpts ...zkcrypto.AddressOption) *SaltRegistry {
	if random == nil {
		random = zkcrypto.GenerateRandomness
	}
	return &SaltRegistry{
		repo:        repo,
		random:      random,
		addressOpts: addressOpts,
		logger:      logger,
	}
}

// GetOrCreate returns the stored salt, generating and storing one if absent
func (r *SaltRegistry) GetOrCreate(ctx context.Context, id Identity) (string, error) {
	if !id.valid() {
		return "", fmt.Errorf("%w: incomplete identity", ErrMalformedToken)
	}
	salt, err := r.repo.Get(ctx, id)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, ErrSaltNotFound) {
		return "", fmt.Errorf("load salt: %w", err)
	}

	fresh, err := r.random()
	if err != nil {
		return "", err
	}
	stored, err := r.repo.Insert(ctx, id, fresh)
	if err != nil {
		return "", fmt.Errorf("store salt: %w", err)
	}

	r.logger.Info("salt created", logfield.Subject(id.Subject), zap.String("issuer", id.Issuer))
	return stored, nil
}

// Get returns the stored salt without creating one
func (r *SaltRegistry) Get(ctx context.Context, id Identity) (string, error) {
	return r.repo.Get(ctx, id)
}

// Delete removes the identity's salt. The address derived from it becomes unreachable,
// so the caller must pass confirm.
func (r *SaltRegistry) Delete(ctx context.Context, id Identity, confirm bool) error {
	if !confirm {
		return ErrDeleteNotConfirmed
	}
	salt, err := r.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	orphaned, _ := zkcrypto.DeriveAddress(id.Issuer, id.Audience, id.Subject, salt, r.addressOpts...)
	if err := r.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete salt: %w", err)
	}

	r.logger.Warn("salt deleted, address is orphaned",
		logfield.Subject(id.Subject),
		logfield.Address(orphaned),
	)
	return nil
}

// saltNamespace holds salts in a session.Store
const saltNamespace = "salts"

// StoreSaltRepository keeps salts in the durable session tier, for deployments without MySQL
type StoreSaltRepository struct {
	store session.Store
}

var _ SaltRepository = (*StoreSaltRepository)(nil)

// NewStoreSaltRepository creates a StoreSaltRepository
func NewStoreSaltRepository(store session.Store) *StoreSaltRepository {
	return &StoreSaltRepository{store: store}
}

func (r *StoreSaltRepository) Get(ctx context.Context, id Identity) (string, error) {
	salt, err := r.store.Get(ctx, saltNamespace, id.Hash())
	if errors.Is(err, session.ErrNotFound) {
		return "", ErrSaltNotFound
	}
	return salt, err
}

// Insert is get-then-set; the store tier is single-writer per identity in practice
func (r *StoreSaltRepository) Insert(ctx context.Context, id Identity, salt string) (string, error) {
	existing, err := r.Get(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrSaltNotFound) {
		return "", err
	}
	if err := r.store.Set(ctx, saltNamespace, id.Hash(), salt); err != nil {
		return "", err
	}
	return salt, nil
}

func (r *StoreSaltRepository) Delete(ctx context.Context, id Identity) error {
	return r.store.Delete(ctx, saltNamespace, id.Hash())
}
