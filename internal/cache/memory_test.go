// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemoryCache(t *testing.T, opts MemoryCacheOptions) (*MemoryCache, *time.Time) {
	t.Helper()
	c := NewMemoryCache(opts)
	t.Cleanup(func() { _ = c.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_SetGet(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Minute})
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get(missing) error = %v, want ErrCacheMiss", err)
	}

	value := []byte("allowed")
	if err := c.Set(ctx, "example.com", value, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'X'

	got, err := c.Get(ctx, "example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "allowed" {
		t.Errorf("Get = %q, stored value was mutated through the caller's slice", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 || stats.Items != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c, now := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Minute})
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), 10*time.Second)
	_ = c.Set(ctx, "long", []byte("2"), 0)

	*now = now.Add(30 * time.Second)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired entry returned error %v, want ErrCacheMiss", err)
	}
	if _, err := c.Get(ctx, "long"); err != nil {
		t.Errorf("entry with default TTL expired too early: %v", err)
	}

	c.removeExpired()
	if items := c.Stats().Items; items != 1 {
		t.Errorf("Items after removeExpired = %d, want 1", items)
	}
}

func TestMemoryCache_MaxItemsEvictsNearestExpiry(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour, MaxItems: 2})
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("a"), time.Minute)
	_ = c.Set(ctx, "b", []byte("b"), time.Hour)
	_ = c.Set(ctx, "c", []byte("c"), time.Hour)

	if _, err := c.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Error("entry closest to expiry should have been evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, err := c.Get(ctx, key); err != nil {
			t.Errorf("%s missing: %v", key, err)
		}
	}

	// Overwriting an existing key never evicts.
	_ = c.Set(ctx, "b", []byte("b2"), time.Hour)
	if _, err := c.Get(ctx, "c"); err != nil {
		t.Error("overwrite evicted another entry")
	}
}

func TestMemoryCache_CleanupLoopDropsExpired(t *testing.T) {
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer func() { _ = c.Close() }()

	_ = c.Set(context.Background(), "k", []byte("v"), 0)

	deadline := time.Now().Add(time.Second)
	for c.Stats().Items != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup loop never removed the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	c := NewMemoryCache(MemoryCacheOptions{CleanupInterval: time.Millisecond})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after Close = %v", err)
	}
	if err := c.Set(ctx, "k", nil, 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after Close = %v", err)
	}
}
