// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	RedisURL        string // empty selects the memory cache
	Prefix          string
	DefaultTTL      time.Duration
	MaxItems        int
	CleanupInterval time.Duration
}

// DefaultConfig returns a memory cache configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:          "quill:",
		DefaultTTL:      time.Hour,
		MaxItems:        10000,
		CleanupInterval: time.Minute,
	}
}

// New returns a RedisCache when RedisURL is set and reachable, otherwise a
// MemoryCache. The returned name is "redis" or "memory".
func New(cfg Config) (Cache, string) {
	if cfg.RedisURL != "" {
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = DefaultConfig().Prefix
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
		rc, err := DialRedis(ctx, RedisConfig{URL: cfg.RedisURL, Prefix: prefix, DefaultTTL: cfg.DefaultTTL})
		cancel()
		if err == nil {
			return rc, "redis"
		}
		slog.Warn("redis cache unavailable, falling back to memory", "error", err)
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxItems:        cfg.MaxItems,
		CleanupInterval: cfg.CleanupInterval,
	}), "memory"
}
