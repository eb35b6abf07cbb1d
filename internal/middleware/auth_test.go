// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
	"github.com/olegiv/quill/internal/testutil"
)

type guardHarness struct {
	t       *testing.T
	srv     *httptest.Server
	cookies *auth.Cookies
	queries *store.Queries
	client  *http.Client
}

func newGuardHarness(t *testing.T, opts authz.Options) *guardHarness {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "guard.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	queries := store.New(db)
	sessions := session.New(db, session.Config{})
	cookies, err := auth.NewCookies(auth.CookieConfig{Secret: []byte("guard-test-secret-0123456789abcdef")})
	if err != nil {
		t.Fatalf("NewCookies: %v", err)
	}
	guard := NewGuard(authz.New(queries, sessions, opts), cookies)

	ok := func(w http.ResponseWriter, r *http.Request) {
		username, _ := GetIdentity(r)
		_, _ = fmt.Fprintf(w, "user=%s admin=%v", username, IsAdmin(r))
	}

	r := chi.NewRouter()
	r.Use(sessions.LoadAndSave)
	r.Use(Identity(cookies))
	r.With(guard.Require(authz.LevelNone)).Get("/public", ok)
	r.With(guard.Require(authz.LevelAuthenticated)).Get("/private", ok)
	r.With(guard.Require(authz.LevelAdmin)).Get("/admin", ok)
	r.With(guard.Require(authz.LevelAdmin)).Post("/admin", ok)
	r.With(guard.ResolveAdmin).Get("/mine", ok)
	r.With(RequireAnonymous("/")).Get("/login", ok)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	h := &guardHarness{t: t, srv: srv, cookies: cookies, queries: queries}
	h.newSession()
	return h
}

// newSession starts a fresh browser: empty cookie jar.
func (h *guardHarness) newSession() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		h.t.Fatalf("cookiejar: %v", err)
	}
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *guardHarness) loginAs(username string) {
	rec := httptest.NewRecorder()
	if err := h.cookies.Remember(rec, username); err != nil {
		h.t.Fatalf("Remember: %v", err)
	}
	u, _ := url.Parse(h.srv.URL)
	h.client.Jar.SetCookies(u, rec.Result().Cookies())
}

func (h *guardHarness) createUser(username string, isAdmin bool) int64 {
	ctx := context.Background()
	if err := h.queries.CreateUser(ctx, username, "pw"); err != nil {
		h.t.Fatalf("CreateUser: %v", err)
	}
	id := testutil.UserID(h.t, h.queries, username)
	if isAdmin {
		if err := h.queries.SetUserAdmin(ctx, id, true); err != nil {
			h.t.Fatalf("SetUserAdmin: %v", err)
		}
	}
	return id
}

func (h *guardHarness) do(method, path string) (*http.Response, string) {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, nil)
	if err != nil {
		h.t.Fatalf("NewRequest: %v", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	return resp, strings.TrimSpace(string(body))
}

func (h *guardHarness) expect(method, path string, wantStatus int) string {
	h.t.Helper()
	resp, body := h.do(method, path)
	if resp.StatusCode != wantStatus {
		h.t.Fatalf("%s %s: status = %d, want %d (body %q)", method, path, resp.StatusCode, wantStatus, body)
	}
	if wantStatus == http.StatusFound || wantStatus == http.StatusTemporaryRedirect {
		if loc := resp.Header.Get("Location"); loc != path {
			h.t.Fatalf("%s %s: Location = %q, want self", method, path, loc)
		}
	}
	return body
}

func TestGuardAnonymous(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())

	h.expect(http.MethodGet, "/public", http.StatusOK)

	for _, path := range []string{"/private", "/admin", "/mine"} {
		body := h.expect(http.MethodGet, path, http.StatusUnauthorized)
		if body != UnauthorizedBody {
			t.Errorf("GET %s body = %q, want %q", path, body, UnauthorizedBody)
		}
	}
}

func TestGuardAuthenticated(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	h.createUser("alice", false)
	h.loginAs("alice")

	body := h.expect(http.MethodGet, "/private", http.StatusOK)
	if body != "user=alice admin=false" {
		t.Errorf("body = %q", body)
	}
}

func TestGuardAdminResolvesThenRedirectsToSelf(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	h.createUser("root", true)
	h.loginAs("root")

	h.expect(http.MethodGet, "/admin", http.StatusFound)
	body := h.expect(http.MethodGet, "/admin", http.StatusOK)
	if body != "user=root admin=true" {
		t.Errorf("body = %q", body)
	}
}

func TestGuardAdminRejectsNonAdmin(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	h.createUser("alice", false)
	h.loginAs("alice")

	h.expect(http.MethodGet, "/admin", http.StatusFound)
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)

	// view-own-data routes still work with a cached false
	body := h.expect(http.MethodGet, "/mine", http.StatusOK)
	if body != "user=alice admin=false" {
		t.Errorf("body = %q", body)
	}
}

func TestGuardUnsafeMethodRedirectKeepsMethod(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	h.createUser("root", true)
	h.loginAs("root")

	h.expect(http.MethodPost, "/admin", http.StatusTemporaryRedirect)
	h.expect(http.MethodPost, "/admin", http.StatusOK)
}

func TestGuardStickyAdminCache(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	id := h.createUser("alice", false)
	h.loginAs("alice")

	h.expect(http.MethodGet, "/admin", http.StatusFound)
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)

	// promoted mid-session: the cached flag still wins
	if err := h.queries.SetUserAdmin(context.Background(), id, true); err != nil {
		t.Fatalf("SetUserAdmin: %v", err)
	}
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)

	// a fresh session sees the promotion
	h.newSession()
	h.loginAs("alice")
	h.expect(http.MethodGet, "/admin", http.StatusFound)
	h.expect(http.MethodGet, "/admin", http.StatusOK)
}

func TestGuardTTLRechecks(t *testing.T) {
	h := newGuardHarness(t, authz.Options{Sticky: false, TTL: 50 * time.Millisecond})
	id := h.createUser("alice", false)
	h.loginAs("alice")

	// without stickiness the freshly read flag is used at once
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)

	if err := h.queries.SetUserAdmin(context.Background(), id, true); err != nil {
		t.Fatalf("SetUserAdmin: %v", err)
	}
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)

	time.Sleep(100 * time.Millisecond)
	body := h.expect(http.MethodGet, "/admin", http.StatusOK)
	if body != "user=alice admin=true" {
		t.Errorf("body = %q", body)
	}
}

func TestGuardZeroTTLNeverRedirects(t *testing.T) {
	h := newGuardHarness(t, authz.Options{Sticky: false, TTL: 0})
	h.createUser("root", true)
	h.createUser("alice", false)

	h.loginAs("root")
	for range 3 {
		body := h.expect(http.MethodGet, "/admin", http.StatusOK)
		if body != "user=root admin=true" {
			t.Fatalf("body = %q", body)
		}
	}
	h.expect(http.MethodPost, "/admin", http.StatusOK)
	if body := h.expect(http.MethodGet, "/mine", http.StatusOK); body != "user=root admin=true" {
		t.Errorf("GET /mine body = %q", body)
	}

	h.newSession()
	h.loginAs("alice")
	h.expect(http.MethodGet, "/admin", http.StatusUnauthorized)
	if body := h.expect(http.MethodGet, "/mine", http.StatusOK); body != "user=alice admin=false" {
		t.Errorf("GET /mine body = %q", body)
	}
}

func TestGuardMissingAccount(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())
	h.loginAs("ghost")

	resp, _ := h.do(http.MethodGet, "/admin")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var cleared bool
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.IdentityCookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("identity cookie for a missing account was not cleared")
	}

	h.expect(http.MethodGet, "/private", http.StatusUnauthorized)
}

func TestRequireAnonymous(t *testing.T) {
	h := newGuardHarness(t, authz.DefaultOptions())

	h.expect(http.MethodGet, "/login", http.StatusOK)

	h.createUser("alice", false)
	h.loginAs("alice")
	resp, _ := h.do(http.MethodGet, "/login")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Errorf("GET /login = %d %q, want 302 /", resp.StatusCode, resp.Header.Get("Location"))
	}
}
