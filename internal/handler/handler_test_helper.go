// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/emailcheck"
	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
	"github.com/olegiv/quill/internal/testutil"
	"github.com/olegiv/quill/web"
)

type envOptions struct {
	authz           authz.Options
	passwords       auth.Passwords
	emailChecker    emailcheck.Checker
	loginProtection *middleware.LoginProtection
	health          map[string]Pinger
}

// testEnv is a running router over a temporary database with one browser
// (cookie jar) attached.
type testEnv struct {
	t       *testing.T
	db      *sql.DB
	queries *store.Queries
	srv     *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T, configure ...func(*envOptions)) *testEnv {
	t.Helper()

	opts := envOptions{authz: authz.DefaultOptions()}
	for _, fn := range configure {
		fn(&opts)
	}

	db, queries := testutil.TestQueries(t)
	sessions := session.New(db, session.Config{})
	cookies, err := auth.NewCookies(auth.CookieConfig{Secret: []byte("handler-test-secret-0123456789abcdef")})
	if err != nil {
		t.Fatalf("NewCookies: %v", err)
	}
	renderer, err := render.New(render.Config{TemplatesFS: web.TemplatesFS()})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	authorizer := authz.New(queries, sessions, opts.authz)
	guard := middleware.NewGuard(authorizer, cookies)

	authH := NewAuthHandler(AuthDeps{
		Queries:         queries,
		Renderer:        renderer,
		Sessions:        sessions,
		Cookies:         cookies,
		Passwords:       opts.passwords,
		LoginProtection: opts.loginProtection,
		EmailChecker:    opts.emailChecker,
	})
	homeH := NewHomeHandler(queries, renderer)
	dashH := NewDashboardHandler(queries, renderer, sessions, authorizer, guard)
	articlesH := NewArticlesHandler(queries, renderer, sessions)
	healthH := NewHealthHandler(db, "test", opts.health)

	r := chi.NewRouter()
	r.Use(sessions.LoadAndSave)
	r.Use(middleware.Identity(cookies))

	r.Get(RouteRoot, homeH.Index)
	r.Get(RouteLogout, authH.Logout)
	r.Get(RouteHealth, healthH.Health)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAnonymous(RouteRoot))
		r.Get(RouteLogin, authH.LoginForm)
		r.Post(RouteLogin, authH.Login)
		r.Get(RouteRegister, authH.RegisterForm)
		r.Post(RouteRegister, authH.Register)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAuthenticated))
		r.Get(RouteDashboard, dashH.Dashboard)
		r.Post(RouteArticle, articlesH.Create)
	})
	r.Route(RouteDashboardUsers, func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAdmin))
		r.Get("/", dashH.Users)
		r.Get(RouteSuffixDelete+RouteParamID, dashH.DeleteUser)
		r.Get(RouteSuffixPromote+RouteParamID, dashH.PromoteUser)
		r.Get(RouteSuffixDemote+RouteParamID, dashH.DemoteUser)
	})
	r.Route(RouteDashboardArticles, func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAuthenticated), guard.ResolveAdmin)
		r.Get("/", articlesH.List)
		r.Get(RouteSuffixFocus+RouteParamID, articlesH.Focus)
		r.Post(RouteParamID, articlesH.Save)
		r.Get(RouteSuffixDelete+RouteParamID, articlesH.Delete)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	env := &testEnv{t: t, db: db, queries: queries, srv: srv}
	env.client = env.newClient()
	return env
}

// newClient returns a fresh browser that does not follow redirects.
func (e *testEnv) newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		e.t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) do(req *http.Request) (*http.Response, string) {
	e.t.Helper()
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) get(path string) (*http.Response, string) {
	e.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	return e.do(req)
}

func (e *testEnv) post(path string, form url.Values) (*http.Response, string) {
	e.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// page fetches path, following redirects back to the same URL that the
// admin-flag resolution issues.
func (e *testEnv) page(path string) (*http.Response, string) {
	e.t.Helper()
	for i := 0; i < 3; i++ {
		resp, body := e.get(path)
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != path {
			return resp, body
		}
	}
	e.t.Fatalf("%s keeps redirecting to itself", path)
	return nil, ""
}

// login signs in and primes the session's admin flag through /dashboard.
func (e *testEnv) login(username, password string) {
	e.t.Helper()
	resp, _ := e.post(RouteLogin, url.Values{"username": {username}, "password": {password}})
	assertRedirect(e.t, resp, RouteRoot)
	resp, _ = e.get(RouteDashboard)
	if resp.StatusCode != http.StatusFound {
		e.t.Fatalf("GET /dashboard after login: status %d", resp.StatusCode)
	}
}

func (e *testEnv) createUser(username, password string) {
	e.t.Helper()
	if err := e.queries.CreateUser(context.Background(), username, password); err != nil {
		e.t.Fatalf("CreateUser(%s): %v", username, err)
	}
}

func (e *testEnv) createAdmin(username, password string) int64 {
	e.t.Helper()
	id, err := e.queries.CreateAdmin(context.Background(), username, password)
	if err != nil {
		e.t.Fatalf("CreateAdmin(%s): %v", username, err)
	}
	return id
}

func (e *testEnv) hasIdentityCookie() bool {
	u, _ := url.Parse(e.srv.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == auth.IdentityCookieName && c.Value != "" {
			return true
		}
	}
	return false
}

// assertStatus checks if the response status code matches the expected value.
func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d; want %d", got, want)
	}
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d; want 302 to %s", resp.StatusCode, location)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("Location = %q; want %q", got, location)
	}
}

func assertFlash(t *testing.T, body, message string) {
	t.Helper()
	want := `<p class="flash" role="alert">` + html.EscapeString(message) + `</p>`
	if !strings.Contains(body, want) {
		t.Errorf("page does not show flash %q", message)
	}
}

func assertNoFlash(t *testing.T, body string) {
	t.Helper()
	if strings.Contains(body, `class="flash"`) {
		t.Errorf("page shows an unexpected flash")
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}
