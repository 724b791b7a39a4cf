package session

import (
	"context"
	"sync"
	"time"
)

type memoryNamespace struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore keeps namespaces in process memory. A zero ttl never expires.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*memoryNamespace
	ttl  time.Duration
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*memoryNamespace),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryStore) expired(ns *memoryNamespace, now time.Time) bool {
	return s.ttl > 0 && !now.Before(ns.expiresAt)
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.data[namespace]
	if !ok || s.expired(ns, s.now()) {
		return "", ErrNotFound
	}
	v, ok := ns.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ns, ok := s.data[namespace]
	if !ok || s.expired(ns, now) {
		ns = &memoryNamespace{values: make(map[string]string)}
		s.data[namespace] = ns
	}
	ns.values[key] = value
	ns.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.data[namespace]; ok {
		for _, k := range keys {
			delete(ns.values, k)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, namespace)
	return nil
}
