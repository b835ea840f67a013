package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(
		WithRedisAddr(mr.Host(), mustPort(t, mr)),
		WithRedisPrefix("test"),
		WithRedisDialTimeout(time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(mr.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}

func TestRedisCacheRoundTrip(t *testing.T) {
	rc, mr := newMiniRedisCache(t)
	ctx := context.Background()

	type entry struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, rc.Set(ctx, "active", entry{Symbols: []string{"AAPL"}}, time.Minute))
	assert.True(t, mr.Exists("test:active"))

	var got entry
	require.NoError(t, rc.Get(ctx, "active", &got))
	assert.Equal(t, []string{"AAPL"}, got.Symbols)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "active", &got), ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "a", "1", 0))
	require.NoError(t, rc.Delete(ctx, "a", "missing"))
	assert.False(t, mr.Exists("test:a"))
}

func TestRedisCacheLockIsOwned(t *testing.T) {
	a, mr := newMiniRedisCache(t)
	b := NewRedisCacheFromClient(a.Client(), "test")
	ctx := context.Background()

	ok, err := a.TryLock(ctx, "bot:cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, "bot:cycle", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// only the holder may release
	require.NoError(t, b.Unlock(ctx, "bot:cycle"))
	assert.True(t, mr.Exists("test:bot:cycle"))
	require.NoError(t, a.Unlock(ctx, "bot:cycle"))
	assert.False(t, mr.Exists("test:bot:cycle"))

	ok, err = b.TryLock(ctx, "bot:cycle", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(WithRedisAddr("127.0.0.1", 1), WithRedisDialTimeout(200*time.Millisecond))
	assert.Error(t, err)
}
