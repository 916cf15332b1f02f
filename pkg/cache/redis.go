package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
)

const keyPrefix = "phonedeals:"

// Redis is the go-redis backed Store.
type Redis struct {
	rdb *redis.Client
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Get(ctx context.Context, key string, dest any) error {
	raw, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return ErrMiss
	}
	if err != nil {
		return err
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return json.Unmarshal(raw, dest)
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	return r.rdb.Del(ctx, full...).Err()
}

func (r *Redis) Touch(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := r.rdb.Expire(ctx, keyPrefix+key, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrMiss
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
