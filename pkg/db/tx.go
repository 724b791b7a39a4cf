package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahwlsqja/zklogin-session-engine/internal/repository/db"
)

// TxRunner manages database transactions with sqlc Queries.
// Service layer uses this to maintain transaction boundaries while
// passing tx-bound Queries to repository operations.
type TxRunner struct {
	database *sql.DB
}

// NewTxRunner creates a new TxRunner instance.
func NewTxRunner(database *sql.DB) *TxRunner {
	return &TxRunner{database: database}
}

// WithTx executes the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
//
// Usage example:
//
//	err := txRunner.WithTx(ctx, func(q *db.Queries) error {
//	    // 1. Drop the salt row
//	    if _, err := q.DeleteSaltByIdentityHash(ctx, hash); err != nil {
//	        return err
//	    }
//	    // 2. Record which address was orphaned
//	    return q.InsertSaltDeletion(ctx, params)
//	})
func (r *TxRunner) WithTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := r.database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Create tx-bound Queries
	q := db.New(tx)

	// Execute the function
	if err := fn(q); err != nil {
		// Rollback on error
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	// Commit on success
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithTxResult executes the given function within a database transaction
// and returns a result value.
//
// Usage example:
//
//	salt, err := WithTxResult(ctx, txRunner, func(q *db.Queries) (db.UserSalt, error) {
//	    if _, err := q.InsertSalt(ctx, params); err != nil {
//	        return db.UserSalt{}, err
//	    }
//	    return q.GetSaltByIdentityHash(ctx, params.IdentityHash)
//	})
func WithTxResult[T any](ctx context.Context, r *TxRunner, fn func(q *db.Queries) (T, error)) (T, error) {
	var result T

	tx, err := r.database.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}

	q := db.New(tx)

	result, err = fn(q)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return result, fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return result, err
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

// Queries returns a non-transactional Queries instance.
// Use this for read-only operations that don't require transactions.
func (r *TxRunner) Queries() *db.Queries {
	return db.New(r.database)
}

// DB returns the underlying database connection.
// Use this sparingly - prefer using Queries() or WithTx().
func (r *TxRunner) DB() *sql.DB {
	return r.database
}
