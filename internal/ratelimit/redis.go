package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "leadpilot:ratelimit:"

// RedisLimiter is a fixed-window counter shared across server instances.
type RedisLimiter struct {
	client    redis.UniversalClient
	perWindow int
	window    time.Duration
	now       func() time.Time
}

// NewRedisLimiter creates a RedisLimiter allowing perMinute requests per key
// in each one-minute window.
func NewRedisLimiter(client redis.UniversalClient, perMinute int) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		perWindow: perMinute,
		window:    time.Minute,
		now:       time.Now,
	}
}

func (l *RedisLimiter) windowKey(key string) string {
	slot := l.now().UnixNano() / int64(l.window)
	return redisKeyPrefix + key + ":" + strconv.FormatInt(slot, 10)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return incr.Val() <= int64(l.perWindow), nil
}
