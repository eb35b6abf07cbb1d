// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	_ "github.com/mattn/go-sqlite3"

	"github.com/olegiv/quill/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);
		CREATE INDEX sessions_expiry_idx ON sessions(expiry);
	`)
	if err != nil {
		t.Fatalf("failed to create sessions table: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	return newManager(sqlite3store.NewWithCleanupInterval(setupTestDB(t), 0), Config{})
}

// loaded returns a context carrying a fresh session.
func loaded(t *testing.T, m *Manager) context.Context {
	t.Helper()
	ctx, err := m.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return ctx
}

func TestNew(t *testing.T) {
	m := New(setupTestDB(t), Config{Secure: true, Domain: "127.0.0.1"})

	if m.Lifetime != 24*time.Hour {
		t.Errorf("Lifetime = %v, want 24h", m.Lifetime)
	}
	if m.Cookie.Name != CookieName {
		t.Errorf("Cookie.Name = %q, want %q", m.Cookie.Name, CookieName)
	}
	if !m.Cookie.HttpOnly {
		t.Error("Cookie.HttpOnly = false, want true")
	}
	if m.Cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("Cookie.SameSite = %v, want Lax", m.Cookie.SameSite)
	}
	if !m.Cookie.Secure {
		t.Error("Cookie.Secure = false, want true")
	}
	if m.Cookie.Domain != "127.0.0.1" {
		t.Errorf("Cookie.Domain = %q", m.Cookie.Domain)
	}
	if m.Store == nil {
		t.Error("Store is nil")
	}
}

func TestAdminFlag(t *testing.T) {
	m := testManager(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	ctx := loaded(t, m)

	if _, ok := m.AdminFlag(ctx); ok {
		t.Fatal("fresh session must not have a cached admin flag")
	}

	m.CacheAdminFlag(ctx, "alice", true)

	flag, ok := m.AdminFlag(ctx)
	if !ok {
		t.Fatal("AdminFlag() not cached after CacheAdminFlag")
	}
	want := AdminFlag{Username: "alice", IsAdmin: true, CachedAt: fixed}
	if flag != want {
		t.Errorf("AdminFlag() = %+v, want %+v", flag, want)
	}

	m.ClearAdminFlag(ctx)
	if _, ok := m.AdminFlag(ctx); ok {
		t.Error("AdminFlag() still cached after ClearAdminFlag")
	}
}

func TestAdminFlagSurvivesCommit(t *testing.T) {
	m := testManager(t)
	ctx := loaded(t, m)

	m.CacheAdminFlag(ctx, "alice", false)
	token, _, err := m.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reloaded, err := m.Load(context.Background(), token)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	flag, ok := m.AdminFlag(reloaded)
	if !ok || flag.Username != "alice" || flag.IsAdmin {
		t.Errorf("AdminFlag() after reload = %+v, %v", flag, ok)
	}
}

func TestArticleFocus(t *testing.T) {
	m := testManager(t)
	ctx := loaded(t, m)

	if got := m.ArticleFocus(ctx); got != model.SentinelID {
		t.Errorf("ArticleFocus() = %d, want sentinel", got)
	}

	m.SetArticleFocus(ctx, 42)
	if got := m.ArticleFocus(ctx); got != 42 {
		t.Errorf("ArticleFocus() = %d, want 42", got)
	}

	m.ClearArticleFocus(ctx)
	if got := m.ArticleFocus(ctx); got != model.SentinelID {
		t.Errorf("ArticleFocus() = %d, want sentinel after clear", got)
	}
}

func TestFlash(t *testing.T) {
	m := testManager(t)
	ctx := loaded(t, m)

	m.SetFlash(ctx, FlashLogin, "Bad password")
	m.SetFlash(ctx, FlashRegister, "Passwords do not match")

	if got := m.Flash(ctx, FlashLogin); got != "Bad password" {
		t.Errorf("Flash(login) = %q", got)
	}
	if got := m.Flash(ctx, FlashLogin); got != "" {
		t.Errorf("Flash(login) second read = %q, want empty", got)
	}

	m.ClearFlash(ctx, FlashRegister)
	if got := m.Flash(ctx, FlashRegister); got != "" {
		t.Errorf("Flash(register) after clear = %q, want empty", got)
	}

	if got := m.Flash(ctx, FlashCreateArticle); got != "" {
		t.Errorf("Flash(create_article) = %q, want empty", got)
	}
}
