package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/ahwlsqja/zklogin-session-engine/internal/common/logfield"
	"github.com/ahwlsqja/zklogin-session-engine/internal/repository/db"
	"github.com/ahwlsqja/zklogin-session-engine/internal/zklogin"
	pkgdb "github.com/ahwlsqja/zklogin-session-engine/pkg/db"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/securestore"
	"github.com/ahwlsqja/zklogin-session-engine/pkg/zkcrypto"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const (
	mysqlErrDuplicateEntry = 1062
)

// SaltRepository stores salts in MySQL, keyed by the identity hash.
// The subject itself is never written; salt values are sealed when a Box is set.
type SaltRepository struct {
	txRunner    *pkgdb.TxRunner
	box         *securestore.Box
	addressOpts []zkcrypto.AddressOption
	logger      *zap.Logger
}

var _ zklogin.SaltRepository = (*SaltRepository)(nil)

// NewSaltRepository creates a SaltRepository. box may be nil.
func NewSaltRepository(txRunner *pkgdb.TxRunner, box *securestore.Box, logger *zap.Logger, addressOpts ...zkcrypto.AddressOption) *SaltRepository {
	return &SaltRepository{
		txRunner:    txRunner,
		box:         box,
		addressOpts: addressOpts,
		logger:      logger,
	}
}

// Get returns zklogin.ErrSaltNotFound when the identity has no row
func (r *SaltRepository) Get(ctx context.Context, id zklogin.Identity) (string, error) {
	hash := id.Hash()
	row, err := r.txRunner.Queries().GetSaltByIdentityHash(ctx, hash)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", zklogin.ErrSaltNotFound
		}
		return "", fmt.Errorf("get salt: %w", err)
	}
	return r.open(row.SaltValue, hash)
}

// Insert writes the salt and reads back the stored row in one transaction.
// When a concurrent request already stored a salt for the same identity,
// the stored value wins and is returned.
func (r *SaltRepository) Insert(ctx context.Context, id zklogin.Identity, salt string) (string, error) {
	hash := id.Hash()
	value, err := r.seal(salt, hash)
	if err != nil {
		return "", err
	}

	row, err := pkgdb.WithTxResult(ctx, r.txRunner, func(q *db.Queries) (db.UserSalt, error) {
		_, err := q.InsertSalt(ctx, db.InsertSaltParams{
			IdentityHash: hash,
			Issuer:       id.Issuer,
			Audience:     id.Audience,
			SaltValue:    value,
		})
		if err != nil {
			if !isDuplicateKeyError(err) {
				return db.UserSalt{}, fmt.Errorf("insert salt: %w", err)
			}
			r.logger.Info("salt insert raced, using stored value", logfield.Subject(id.Subject))
		}
		return q.GetSaltByIdentityHash(ctx, hash)
	})
	if err != nil {
		return "", err
	}
	return r.open(row.SaltValue, hash)
}

// Delete removes the row and records the orphaned address in one transaction
func (r *SaltRepository) Delete(ctx context.Context, id zklogin.Identity) error {
	hash := id.Hash()
	return r.txRunner.WithTx(ctx, func(q *db.Queries) error {
		// 1. Load the salt so the orphaned address can be recorded
		row, err := q.GetSaltByIdentityHash(ctx, hash)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return zklogin.ErrSaltNotFound
			}
			return err
		}
		salt, err := r.open(row.SaltValue, hash)
		if err != nil {
			return err
		}
		address, err := zkcrypto.DeriveAddress(id.Issuer, id.Audience, id.Subject, salt, r.addressOpts...)
		if err != nil {
			return err
		}

		// 2. Drop the row
		if _, err := q.DeleteSaltByIdentityHash(ctx, hash); err != nil {
			return err
		}

		// 3. Audit
		return q.InsertSaltDeletion(ctx, db.InsertSaltDeletionParams{
			IdentityHash:    hash,
			OrphanedAddress: address,
		})
	})
}

func (r *SaltRepository) seal(salt, hash string) (string, error) {
	if r.box == nil {
		return salt, nil
	}
	return r.box.Seal([]byte(salt), []byte(hash))
}

// open accepts plaintext rows written before encryption was enabled
func (r *SaltRepository) open(value, hash string) (string, error) {
	if !securestore.IsSealed(value) {
		return value, nil
	}
	if r.box == nil {
		return "", fmt.Errorf("salt is sealed but no encryption key is configured")
	}
	plain, err := r.box.Open(value, []byte(hash))
	if err != nil {
		return "", fmt.Errorf("open salt: %w", err)
	}
	return string(plain), nil
}

// isDuplicateKeyError checks if the error is a MySQL duplicate key error
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
