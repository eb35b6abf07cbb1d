// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package authz decides whether an identity is an administrator, caching the
// answer in the caller's session.
//
// The first check in a session reads the user's admin flag from storage and
// stores it in the session. With the default sticky policy every later check
// in that session trusts the cached value, even when the account is promoted
// or demoted in the meantime; only a new session sees the change.
package authz

import (
	"context"
	"time"

	"github.com/olegiv/quill/internal/metrics"
	"github.com/olegiv/quill/internal/session"
)

// Level is the capability a route requires.
type Level int

const (
	LevelNone Level = iota
	LevelAuthenticated
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelAuthenticated:
		return "authenticated"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// AdminLookup reads the authoritative admin flag.
type AdminLookup interface {
	GetUserIsAdmin(ctx context.Context, username string) (bool, error)
}

// FlagStore holds the per-session cached flag.
type FlagStore interface {
	AdminFlag(ctx context.Context) (session.AdminFlag, bool)
	CacheAdminFlag(ctx context.Context, username string, isAdmin bool)
}

// Options controls how long a cached flag is trusted.
type Options struct {
	// Sticky trusts a cached flag for the whole session.
	Sticky bool
	// TTL bounds the age of a cached flag when Sticky is false. Zero means
	// the flag is re-read from storage on every check.
	TTL time.Duration
}

// DefaultOptions returns the sticky policy.
func DefaultOptions() Options {
	return Options{Sticky: true}
}

// Authorizer resolves admin decisions.
type Authorizer struct {
	lookup AdminLookup
	flags  FlagStore
	opts   Options
	now    func() time.Time
}

// New returns an Authorizer.
func New(lookup AdminLookup, flags FlagStore, opts Options) *Authorizer {
	return &Authorizer{
		lookup: lookup,
		flags:  flags,
		opts:   opts,
		now:    time.Now,
	}
}

// Cached returns the decision cached for username without touching storage.
// A flag cached for a different identity is ignored.
func (a *Authorizer) Cached(ctx context.Context, username string) (isAdmin, ok bool) {
	flag, found := a.flags.AdminFlag(ctx)
	switch {
	case !found:
		metrics.AdminCacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return false, false
	case flag.Username != username:
		metrics.AdminCacheLookups.WithLabelValues(metrics.CacheIdentity).Inc()
		return false, false
	case !a.opts.Sticky && a.now().Sub(flag.CachedAt) >= a.opts.TTL:
		metrics.AdminCacheLookups.WithLabelValues(metrics.CacheExpired).Inc()
		return false, false
	}

	metrics.AdminCacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	return flag.IsAdmin, true
}

// Sticky reports whether cached flags are trusted for the whole session.
func (a *Authorizer) Sticky() bool {
	return a.opts.Sticky
}

// Resolve returns the cached decision for username, or reads it from storage
// and caches it. Storage errors, including store.ErrNotFound for an identity
// whose account is gone, are returned unchanged and nothing is cached.
func (a *Authorizer) Resolve(ctx context.Context, username string) (bool, error) {
	if isAdmin, ok := a.Cached(ctx, username); ok {
		return isAdmin, nil
	}
	return a.Refresh(ctx, username)
}

// Refresh reads the flag from storage and caches it, skipping the cache
// check. Callers that already saw a miss from Cached use it directly.
func (a *Authorizer) Refresh(ctx context.Context, username string) (bool, error) {
	metrics.AdminLookups.Inc()
	isAdmin, err := a.lookup.GetUserIsAdmin(ctx, username)
	if err != nil {
		return false, err
	}

	a.flags.CacheAdminFlag(ctx, username, isAdmin)
	return isAdmin, nil
}
