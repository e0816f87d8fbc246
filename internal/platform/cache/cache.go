// Package cache provides the byte-oriented key/value stores used for profile
// read caching. Memory is backed by go-cache, Redis by go-redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the cache contract shared by the memory and redis backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	DefaultTTL    time.Duration
}

// New returns a redis store when an address is configured, otherwise memory.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.DefaultTTL), nil
	}
	return NewRedis(ctx, cfg)
}
