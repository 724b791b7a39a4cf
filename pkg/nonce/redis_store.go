package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// keyPrefix is the default Redis key prefix
	keyPrefix = "zklogin:nonce"
	usedValue = "used"
)

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore implements Store interface using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Compile-time interface compliance check
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based nonce store with default TTL
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return NewRedisStoreWithTTL(client, keyPrefix, DefaultTTL, logger)
}

// NewRedisStoreWithTTL creates a Redis-based store with a custom key prefix and TTL
func NewRedisStoreWithTTL(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// buildKey creates a Redis key from owner and value
// Format: {prefix}:{owner}:{value}
func (s *RedisStore) buildKey(owner, value string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, owner, value)
}

// Reserve attempts to reserve a value using SETNX; the key holds the reservation token
func (s *RedisStore) Reserve(ctx context.Context, value, owner string) (string, error) {
	key := s.buildKey(owner, value)
	token := newToken()

	// SETNX with TTL - only succeeds if key doesn't exist
	ok, err := s.client.SetNX(ctx, key, token, s.ttl).Result()
	if err != nil {
		s.logger.Error("failed to reserve nonce",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to reserve nonce: %w", err)
	}

	if !ok {
		s.logger.Warn("nonce already used or reserved", zap.String("owner", owner))
		return "", ErrNonceAlreadyUsed
	}

	s.logger.Debug("nonce reserved", zap.String("owner", owner))
	return token, nil
}

// MarkUsed marks a reserved value as used
func (s *RedisStore) MarkUsed(ctx context.Context, value, owner string) error {
	key := s.buildKey(owner, value)

	err := s.client.Set(ctx, key, usedValue, s.ttl).Err()
	if err != nil {
		s.logger.Error("failed to mark nonce as used",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return fmt.Errorf("failed to mark nonce as used: %w", err)
	}

	s.logger.Debug("nonce marked as used", zap.String("owner", owner))
	return nil
}

// Release deletes the reservation if it still holds token, allowing retry
func (s *RedisStore) Release(ctx context.Context, value, owner, token string) error {
	key := s.buildKey(owner, value)

	deleted, err := releaseScript.Run(ctx, s.client, []string{key}, token).Int()
	if err != nil {
		s.logger.Error("failed to release nonce",
			zap.String("owner", owner),
			zap.Error(err),
		)
		return fmt.Errorf("failed to release nonce: %w", err)
	}

	if deleted == 0 {
		s.logger.Warn("reservation no longer held, release skipped", zap.String("owner", owner))
		return nil
	}
	s.logger.Debug("nonce released", zap.String("owner", owner))
	return nil
}
