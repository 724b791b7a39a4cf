package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahwlsqja/zklogin-session-engine/pkg/securestore"
	"go.uber.org/zap"
)

// FileStore is a durable tier for single-node deployments without Redis.
// The whole store is kept in memory and rewritten as one encrypted snapshot on every change.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	secret string
	data   map[string]map[string]string
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads the snapshot at path, creating an empty store if it does not exist
func OpenFileStore(path, secret string, logger *zap.Logger) (*FileStore, error) {
	if !securestore.IsStorageConfigured(path, secret) {
		return nil, fmt.Errorf("file store requires a path and a secret")
	}
	data := make(map[string]map[string]string)
	if err := securestore.ReadEncryptedJSON(path, secret, &data); err != nil {
		return nil, fmt.Errorf("load session snapshot: %w", err)
	}
	if data == nil {
		data = make(map[string]map[string]string)
	}
	return &FileStore{
		path:   path,
		secret: secret,
		data:   data,
		logger: logger,
	}, nil
}

func (s *FileStore) Get(_ context.Context, namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[namespace][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]string)
		s.data[namespace] = ns
	}
	ns[key] = value
	return s.flush()
}

func (s *FileStore) Delete(_ context.Context, namespace string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(s.data, namespace)
	}
	return s.flush()
}

func (s *FileStore) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[namespace]; !ok {
		return nil
	}
	delete(s.data, namespace)
	return s.flush()
}

// flush writes the snapshot. Caller holds mu.
func (s *FileStore) flush() error {
	if err := securestore.WriteEncryptedJSON(s.path, s.secret, s.data); err != nil {
		s.logger.Error("failed to write session snapshot", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return nil
}
