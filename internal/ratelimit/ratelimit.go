// Package ratelimit limits public chat traffic per tenant key and client IP.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Key builds the limiter key for a chat request.
func Key(tenantKey, clientIP string) string {
	return tenantKey + ":" + clientIP
}

// MemoryLimiter is an in-process token bucket per key. At most maxKeys
// buckets are kept; the least recently used are evicted.
type MemoryLimiter struct {
	perMinute int
	buckets   *lru.Cache
	mu        sync.Mutex
}

// NewMemoryLimiter creates a MemoryLimiter allowing perMinute requests per key,
// with bursts up to perMinute.
func NewMemoryLimiter(perMinute, maxKeys int) (*MemoryLimiter, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("perMinute must be positive, got %d", perMinute)
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}
	return &MemoryLimiter{perMinute: perMinute, buckets: cache}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.bucket(key).Allow(), nil
}

func (l *MemoryLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}
	b := rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
	l.buckets.Add(key, b)
	return b
}
