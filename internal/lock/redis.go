package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "leadpilot:lock:"

// RedisLocker is a Locker shared by every server instance using the same Redis.
type RedisLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a RedisLocker. expiry is how long a lock survives a
// crashed holder; wait bounds how long Lock retries.
func NewRedisLocker(client redis.UniversalClient, expiry, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		wait:   wait,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(redisKeyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithRetryDelay(50*time.Millisecond),
		redsync.WithTries(int(l.wait/(50*time.Millisecond))+1),
	)

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := mutex.UnlockContext(unlockCtx); err != nil {
				log.Error().Err(err).Str("key", key).Msg("[RedisLocker] release: failed to unlock mutex")
			}
		})
	}, nil
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info().Msg("Successfully connected to Redis")
	return client, nil
}
