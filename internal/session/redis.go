package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each namespace in one Redis hash.
// Every write refreshes the hash TTL; a zero ttl never expires.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// buildKey formats {prefix}:{namespace}
func (s *RedisStore) buildKey(namespace string) string {
	return fmt.Sprintf("%s:%s", s.prefix, namespace)
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.buildKey(namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		s.logger.Error("failed to read session key",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("read session key: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key, value string) error {
	redisKey := s.buildKey(namespace)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey, key, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, redisKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to write session key",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("write session key: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.buildKey(namespace), keys...).Err(); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, namespace string) error {
	if err := s.client.Del(ctx, s.buildKey(namespace)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
