// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/quill/internal/metrics"
	"github.com/olegiv/quill/internal/session"
)

type fakeLookup struct {
	admins map[string]bool
	err    error
	calls  int
}

func (f *fakeLookup) GetUserIsAdmin(_ context.Context, username string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.admins[username], nil
}

type fakeFlags struct {
	flag  session.AdminFlag
	set   bool
	clock func() time.Time
}

func (f *fakeFlags) AdminFlag(context.Context) (session.AdminFlag, bool) {
	return f.flag, f.set
}

func (f *fakeFlags) CacheAdminFlag(_ context.Context, username string, isAdmin bool) {
	f.flag = session.AdminFlag{Username: username, IsAdmin: isAdmin, CachedAt: f.clock()}
	f.set = true
}

func newFixture(opts Options) (*Authorizer, *fakeLookup, *fakeFlags, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	lookup := &fakeLookup{admins: map[string]bool{"root": true, "alice": false}}
	flags := &fakeFlags{clock: clock}
	a := New(lookup, flags, opts)
	a.now = clock
	return a, lookup, flags, &now
}

func TestResolveCachesOnFirstCheck(t *testing.T) {
	a, lookup, flags, _ := newFixture(DefaultOptions())
	ctx := context.Background()

	_, ok := a.Cached(ctx, "root")
	assert.False(t, ok)

	isAdmin, err := a.Resolve(ctx, "root")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, 1, lookup.calls)
	assert.True(t, flags.set)

	isAdmin, ok = a.Cached(ctx, "root")
	assert.True(t, ok)
	assert.True(t, isAdmin)
}

func TestStickyCacheIgnoresStorageChanges(t *testing.T) {
	a, lookup, _, now := newFixture(DefaultOptions())
	ctx := context.Background()

	isAdmin, err := a.Resolve(ctx, "alice")
	require.NoError(t, err)
	require.False(t, isAdmin)

	// alice is promoted after the flag was cached
	lookup.admins["alice"] = true
	*now = now.Add(72 * time.Hour)

	for range 3 {
		isAdmin, err = a.Resolve(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, isAdmin, "sticky cache must keep the first answer")
	}
	assert.Equal(t, 1, lookup.calls, "storage must be read once per session")
}

func TestTTLExpiresCachedFlag(t *testing.T) {
	a, lookup, _, now := newFixture(Options{Sticky: false, TTL: time.Minute})
	ctx := context.Background()

	_, err := a.Resolve(ctx, "alice")
	require.NoError(t, err)

	lookup.admins["alice"] = true
	*now = now.Add(30 * time.Second)
	isAdmin, err := a.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, isAdmin, "still within TTL")

	*now = now.Add(time.Minute)
	isAdmin, err = a.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, isAdmin, "expired flag is re-read")
	assert.Equal(t, 2, lookup.calls)
}

func TestZeroTTLAlwaysRechecks(t *testing.T) {
	a, lookup, _, _ := newFixture(Options{Sticky: false})
	ctx := context.Background()

	for range 3 {
		_, err := a.Resolve(ctx, "root")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, lookup.calls)
}

func TestRefreshSkipsCache(t *testing.T) {
	a, lookup, flags, _ := newFixture(DefaultOptions())
	ctx := context.Background()

	_, err := a.Resolve(ctx, "alice")
	require.NoError(t, err)

	lookup.admins["alice"] = true
	isAdmin, err := a.Refresh(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, 2, lookup.calls)
	assert.True(t, flags.flag.IsAdmin, "refreshed flag is cached")
	assert.True(t, a.Sticky())
}

func TestCacheMissCountedOnce(t *testing.T) {
	a, _, _, _ := newFixture(DefaultOptions())
	ctx := context.Background()
	misses := metrics.AdminCacheLookups.WithLabelValues(metrics.CacheMiss)
	before := promtestutil.ToFloat64(misses)

	// one cache check, then a storage read
	_, ok := a.Cached(ctx, "root")
	require.False(t, ok)
	_, err := a.Refresh(ctx, "root")
	require.NoError(t, err)

	assert.Equal(t, before+1, promtestutil.ToFloat64(misses))
}

func TestFlagBoundToIdentity(t *testing.T) {
	a, lookup, _, _ := newFixture(DefaultOptions())
	ctx := context.Background()

	isAdmin, err := a.Resolve(ctx, "root")
	require.NoError(t, err)
	require.True(t, isAdmin)

	// another user logs in on the same browser session
	_, ok := a.Cached(ctx, "alice")
	assert.False(t, ok)

	isAdmin, err = a.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, isAdmin, "root's flag must not leak to alice")
	assert.Equal(t, 2, lookup.calls)
}

func TestResolveErrorIsNotCached(t *testing.T) {
	a, lookup, flags, _ := newFixture(DefaultOptions())
	lookup.err = errors.New("database is locked")

	_, err := a.Resolve(context.Background(), "root")
	assert.ErrorIs(t, err, lookup.err)
	assert.False(t, flags.set)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "none", LevelNone.String())
	assert.Equal(t, "authenticated", LevelAuthenticated.String())
	assert.Equal(t, "admin", LevelAdmin.String())
	assert.Equal(t, "unknown", Level(42).String())
}
