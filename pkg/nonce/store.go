package nonce

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how long a reservation survives a crashed holder
	DefaultTTL = 5 * time.Minute
)

// Store reserves single-use values scoped to an owner.
// The login flow uses it for two things: an OAuth nonce may be consumed by one
// token correlation only, and a session may run one mutating step at a time.
type Store interface {
	// Reserve claims value for owner and returns the token that identifies this reservation.
	// Returns ErrNonceAlreadyUsed if value is already reserved or used.
	Reserve(ctx context.Context, value, owner string) (string, error)

	// MarkUsed turns a reservation into a permanent (TTL-bound) tombstone
	MarkUsed(ctx context.Context, value, owner string) error

	// Release drops the reservation identified by token so the value can be claimed again.
	// A reservation that expired and was claimed by someone else is left alone.
	Release(ctx context.Context, value, owner, token string) error
}

// Error definitions
var (
	ErrNonceAlreadyUsed = errors.New("nonce already used or reserved")
)

func newToken() string {
	return uuid.New().String()
}
