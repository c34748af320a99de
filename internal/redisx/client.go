package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// Cache is a thin, advisory layer over Redis: the database is always the
// source of truth, and a nil Cache (or nil client) simply misses everything,
// which keeps handlers testable without a Redis instance.
type Cache struct{ R *redis.Client }

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.R == nil {
		return "", false
	}
	s, err := c.R.Get(ctx, key).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.R == nil {
		return
	}
	_ = c.R.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) {
	if c == nil || c.R == nil {
		return
	}
	_ = c.R.Del(ctx, keys...).Err()
}
