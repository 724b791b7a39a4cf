package nonce

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	used      bool
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and tests
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store whose entries expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func memoryKey(owner, value string) string {
	return owner + "\x00" + value
}

func (s *MemoryStore) Reserve(_ context.Context, value, owner string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(owner, value)
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return "", ErrNonceAlreadyUsed
	}
	token := newToken()
	s.entries[key] = memoryEntry{token: token, expiresAt: now.Add(s.ttl)}
	s.sweep(now)
	return token, nil
}

func (s *MemoryStore) MarkUsed(_ context.Context, value, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[memoryKey(owner, value)] = memoryEntry{used: true, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, value, owner, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(owner, value)
	if e, ok := s.entries[key]; ok && !e.used && e.token == token {
		delete(s.entries, key)
	}
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
