package ratelimit

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsBurstThenRejects(t *testing.T) {
	l, err := NewMemoryLimiter(3, 100)
	require.NoError(t, err)
	ctx := context.Background()
	key := Key("tenant-key", "10.0.0.1")

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := l.Allow(ctx, Key("tenant-key", "10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, other, "limits are per client")
}

func TestMemoryLimiterValidates(t *testing.T) {
	_, err := NewMemoryLimiter(0, 10)
	assert.Error(t, err)
	_, err = NewMemoryLimiter(10, 0)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "abc:127.0.0.1", Key("abc", "127.0.0.1"))
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("LEADPILOT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEADPILOT_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	l := NewRedisLimiter(client, 2)
	key := uuid.NewString()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
