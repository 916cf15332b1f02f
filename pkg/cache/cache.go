// Package cache is a small JSON key/value store with TTLs. Redis backs it in
// deployed environments; the memory driver serves tests and single-node dev.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/phonedeals/config"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by every driver.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Touch resets the TTL of an existing key. It returns ErrMiss when absent.
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

// Open picks a driver from CACHE_DRIVER. When redis is selected but
// unreachable the memory store is used and a warning logged.
func Open(ctx context.Context) Store {
	if config.Get("CACHE_DRIVER", "redis") == "memory" {
		return NewMemory()
	}

	r, err := DialRedis(ctx, config.RedisAddr(), config.RedisPassword())
	if err != nil {
		logger.Warn("cache: redis unavailable, falling back to memory", "error", err)
		return NewMemory()
	}
	return r
}
