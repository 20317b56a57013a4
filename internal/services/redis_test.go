package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisProvider(t *testing.T) *RedisProvider {
	t.Helper()

	// Requires a running Redis; set IE_TEST_REDIS_ADDR to enable.
	addr := os.Getenv("IE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IE_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	p, err := NewRedisProvider(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.HealthCheck(ctx))
	return p
}

func TestRedisLocker(t *testing.T) {
	p := testRedisProvider(t)
	ctx := context.Background()

	a, b := p.Locker(), p.Locker()
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	held, err := a.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, held)

	token, err := b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, token)

	// A release without the holder's token is a no-op
	require.NoError(t, b.Release(ctx, key, "not-the-token"))
	token, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, a.Release(ctx, key, held))
	token, err = b.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NoError(t, b.Release(ctx, key, token))
}

func TestRedisLockerStaleReleaseKeepsNewHolder(t *testing.T) {
	p := testRedisProvider(t)
	ctx := context.Background()

	l := p.Locker()
	key := "test-stale:" + time.Now().Format(time.RFC3339Nano)

	stale, err := l.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotEmpty(t, stale)

	require.Eventually(t, func() bool {
		n, err := p.client.Exists(ctx, lockPrefix+key).Result()
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	current, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, current)

	// The expired holder finishing late must not free the new hold
	require.NoError(t, l.Release(ctx, key, stale))
	token, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, l.Release(ctx, key, current))
}
