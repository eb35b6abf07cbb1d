// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoRedisURL is returned by DialRedis when no URL is configured.
var ErrNoRedisURL = errors.New("redis URL is required")

const redisDialTimeout = 5 * time.Second

// RedisConfig describes a Redis cache connection.
type RedisConfig struct {
	URL        string // redis://host:6379/0
	Prefix     string
	DefaultTTL time.Duration
}

// RedisCache keeps entries in Redis so that every instance sees the same
// verdicts. Keys are namespaced with the configured prefix.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	closed atomic.Bool
	counters
}

// DialRedis connects to cfg.URL and verifies the server answers a PING
// within ctx.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.URL == "" {
		return nil, ErrNoRedisURL
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = redisDialTimeout

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{rdb: rdb, prefix: cfg.Prefix, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	c.hits.Add(1)
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	c.sets.Add(1)
	return nil
}

// Close releases the connection pool. It is safe to call more than once.
func (c *RedisCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.rdb.Close()
}

// Stats reports the counters of this process only.
func (c *RedisCache) Stats() Stats {
	return c.snapshot(0)
}

// Ping checks the connection for the health endpoint.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.rdb.Ping(ctx).Err()
}

var (
	_ Cache         = (*RedisCache)(nil)
	_ StatsProvider = (*RedisCache)(nil)
)
