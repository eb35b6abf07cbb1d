// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/olegiv/quill/internal/cache"
)

func TestCacheCollectorReportsMemoryStats(t *testing.T) {
	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mc.Close() }()

	ctx := context.Background()
	_, _ = mc.Get(ctx, "example.com")
	_ = mc.Set(ctx, "example.com", []byte(`{"allowed":true}`), 0)
	_, _ = mc.Get(ctx, "example.com")
	_, _ = mc.Get(ctx, "example.com")

	expected := `
# HELP quill_cache_hits_total Shared cache lookups that found a live entry
# TYPE quill_cache_hits_total counter
quill_cache_hits_total{backend="memory"} 2
# HELP quill_cache_items Entries held by the shared cache, zero when the backend does not count them
# TYPE quill_cache_items gauge
quill_cache_items{backend="memory"} 1
# HELP quill_cache_misses_total Shared cache lookups that found nothing
# TYPE quill_cache_misses_total counter
quill_cache_misses_total{backend="memory"} 1
# HELP quill_cache_sets_total Entries written to the shared cache
# TYPE quill_cache_sets_total counter
quill_cache_sets_total{backend="memory"} 1
`
	c := NewCacheCollector("memory", mc)
	if err := promtestutil.CollectAndCompare(c, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCacheCollectorReadsAtScrapeTime(t *testing.T) {
	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{})
	defer func() { _ = mc.Close() }()
	c := NewCacheCollector("memory", mc)

	if n := promtestutil.CollectAndCount(c, "quill_cache_items"); n != 1 {
		t.Fatalf("items series = %d, want 1", n)
	}

	_ = mc.Set(context.Background(), "a", []byte("1"), 0)
	_ = mc.Set(context.Background(), "b", []byte("2"), 0)

	expected := `
# HELP quill_cache_items Entries held by the shared cache, zero when the backend does not count them
# TYPE quill_cache_items gauge
quill_cache_items{backend="memory"} 2
`
	if err := promtestutil.CollectAndCompare(c, strings.NewReader(expected), "quill_cache_items"); err != nil {
		t.Error(err)
	}
}
