package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value in a namespace
var ErrNotFound = errors.New("session key not found")

// Store is a namespaced string key/value store.
// A namespace is usually a session id; each key inside it is written by one component only.
type Store interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace string, keys ...string) error
	// Clear drops every key of a namespace
	Clear(ctx context.Context, namespace string) error
}

// Tiers groups the two storage lifetimes a login flow needs.
// Volatile holds per-tab material such as the raw id_token and randomness.
// Durable holds material that must survive a restart such as the ephemeral key and salts.
type Tiers struct {
	Volatile Store
	Durable  Store
}

// GetFirst reads key from the volatile tier, falling back to the durable tier
func (t Tiers) GetFirst(ctx context.Context, namespace, key string) (string, error) {
	v, err := t.Volatile.Get(ctx, namespace, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return t.Durable.Get(ctx, namespace, key)
}

// SetBoth writes key to both tiers
func (t Tiers) SetBoth(ctx context.Context, namespace, key, value string) error {
	if err := t.Volatile.Set(ctx, namespace, key, value); err != nil {
		return err
	}
	return t.Durable.Set(ctx, namespace, key, value)
}

// ClearBoth drops a namespace from both tiers
func (t Tiers) ClearBoth(ctx context.Context, namespace string) error {
	if err := t.Volatile.Clear(ctx, namespace); err != nil {
		return err
	}
	return t.Durable.Clear(ctx, namespace)
}
