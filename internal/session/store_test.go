package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "s1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "s1", "k", "v1"))
	require.NoError(t, s.Set(ctx, "s1", "k", "v2"))
	require.NoError(t, s.Set(ctx, "s1", "other", "x"))
	require.NoError(t, s.Set(ctx, "s2", "k", "w"))

	v, err := s.Get(ctx, "s1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, s.Delete(ctx, "s1", "k"))
	_, err = s.Get(ctx, "s1", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err = s.Get(ctx, "s1", "other")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.NoError(t, s.Clear(ctx, "s1"))
	_, err = s.Get(ctx, "s1", "other")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = s.Get(ctx, "s2", "k")
	require.NoError(t, err)
	assert.Equal(t, "w", v)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "s", "k", "v"))
	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "s", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "test:session", time.Hour, zap.NewNop())
	runStoreContract(t, s)

	require.NoError(t, s.Set(context.Background(), "s3", "k", "v"))
	assert.Equal(t, time.Hour, mr.TTL("test:session:s3"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(context.Background(), "s3", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.enc")
	s, err := OpenFileStore(path, "secret", zap.NewNop())
	require.NoError(t, err)
	runStoreContract(t, s)

	reopened, err := OpenFileStore(path, "secret", zap.NewNop())
	require.NoError(t, err)
	v, err := reopened.Get(context.Background(), "s2", "k")
	require.NoError(t, err)
	assert.Equal(t, "w", v)

	_, err = OpenFileStore(path, "wrong", zap.NewNop())
	assert.Error(t, err)

	_, err = OpenFileStore("", "secret", zap.NewNop())
	assert.Error(t, err)
}

func TestTiers(t *testing.T) {
	ctx := context.Background()
	tiers := Tiers{Volatile: NewMemoryStore(0), Durable: NewMemoryStore(0)}

	require.NoError(t, tiers.Durable.Set(ctx, "s", "k", "durable"))
	v, err := tiers.GetFirst(ctx, "s", "k")
	require.NoError(t, err)
	assert.Equal(t, "durable", v)

	require.NoError(t, tiers.SetBoth(ctx, "s", "k", "both"))
	v, err = tiers.Volatile.Get(ctx, "s", "k")
	require.NoError(t, err)
	assert.Equal(t, "both", v)

	require.NoError(t, tiers.ClearBoth(ctx, "s"))
	_, err = tiers.GetFirst(ctx, "s", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
