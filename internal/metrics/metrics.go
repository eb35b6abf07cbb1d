// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/quill/internal/cache"
)

const namespace = "quill"

// Admin cache lookup results.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheExpired  = "expired"
	CacheIdentity = "identity_changed"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	AdminCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "admin_cache_total",
			Help:      "Session admin-flag cache lookups by result",
		},
		[]string{"result"},
	)

	AdminLookups = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "admin_lookups_total",
			Help:      "Admin flag reads that reached the database",
		},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RegisterDB exports connection pool statistics for db. Calling it twice
// for the same process is an error.
func RegisterDB(db *sql.DB) error {
	return prometheus.Register(collectors.NewDBStatsCollector(db, namespace))
}

var (
	cacheHitsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "hits_total"),
		"Shared cache lookups that found a live entry", []string{"backend"}, nil)
	cacheMissesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "misses_total"),
		"Shared cache lookups that found nothing", []string{"backend"}, nil)
	cacheSetsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "sets_total"),
		"Entries written to the shared cache", []string{"backend"}, nil)
	cacheItemsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "items"),
		"Entries held by the shared cache, zero when the backend does not count them", []string{"backend"}, nil)
)

// CacheCollector exports the counters of a shared cache at scrape time.
type CacheCollector struct {
	backend string
	stats   cache.StatsProvider
}

// NewCacheCollector returns a collector for stats labelled with backend.
func NewCacheCollector(backend string, stats cache.StatsProvider) *CacheCollector {
	return &CacheCollector{backend: backend, stats: stats}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheHitsDesc
	ch <- cacheMissesDesc
	ch <- cacheSetsDesc
	ch <- cacheItemsDesc
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(cacheHitsDesc, prometheus.CounterValue, float64(s.Hits), c.backend)
	ch <- prometheus.MustNewConstMetric(cacheMissesDesc, prometheus.CounterValue, float64(s.Misses), c.backend)
	ch <- prometheus.MustNewConstMetric(cacheSetsDesc, prometheus.CounterValue, float64(s.Sets), c.backend)
	ch <- prometheus.MustNewConstMetric(cacheItemsDesc, prometheus.GaugeValue, float64(s.Items), c.backend)
}

// RegisterCache exports the counters of the shared cache on the default
// registry.
func RegisterCache(backend string, stats cache.StatsProvider) error {
	return prometheus.Register(NewCacheCollector(backend, stats))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
