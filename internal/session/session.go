// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session wraps an scs session manager with typed accessors for the
// per-session state: the cached admin flag, the article focus and the
// route-scoped flash messages.
package session

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/quill/internal/model"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

const (
	keyAdminFlag    = "admin_flag"
	keyArticleFocus = "article_focus"
)

// FlashKey names a route-scoped failure message.
type FlashKey string

// Flash keys. Each is set on a failure path and cleared on the matching
// success path.
const (
	FlashLogin         FlashKey = "login_failure"
	FlashRegister      FlashKey = "register_failure"
	FlashCreateArticle FlashKey = "create_article_failure"
	FlashDashboard     FlashKey = "dashboard_failure"
)

// AdminFlag is a cached admin decision and the identity it was computed for.
type AdminFlag struct {
	Username string
	IsAdmin  bool
	CachedAt time.Time
}

func init() {
	gob.Register(AdminFlag{})
}

// Config holds session cookie settings.
type Config struct {
	Lifetime time.Duration
	Secure   bool
	Domain   string
}

// Manager is an scs.SessionManager with typed state accessors.
type Manager struct {
	*scs.SessionManager
	now func() time.Time
}

// New creates a session manager backed by the sessions table in db.
func New(db *sql.DB, cfg Config) *Manager {
	return newManager(sqlite3store.New(db), cfg)
}

func newManager(store scs.Store, cfg Config) *Manager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = 24 * time.Hour
	}

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = cfg.Lifetime
	sm.Cookie.Name = CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.Domain = cfg.Domain
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.Secure

	return &Manager{SessionManager: sm, now: time.Now}
}

// AdminFlag returns the cached admin flag, if any.
func (m *Manager) AdminFlag(ctx context.Context) (AdminFlag, bool) {
	flag, ok := m.Get(ctx, keyAdminFlag).(AdminFlag)
	return flag, ok
}

// CacheAdminFlag stores the admin decision for username.
func (m *Manager) CacheAdminFlag(ctx context.Context, username string, isAdmin bool) {
	m.Put(ctx, keyAdminFlag, AdminFlag{
		Username: username,
		IsAdmin:  isAdmin,
		CachedAt: m.now().UTC(),
	})
}

// ClearAdminFlag drops the cached admin decision.
func (m *Manager) ClearAdminFlag(ctx context.Context) {
	m.Remove(ctx, keyAdminFlag)
}

// ArticleFocus returns the id of the article being edited, or
// model.SentinelID when none is selected.
func (m *Manager) ArticleFocus(ctx context.Context) int64 {
	if !m.Exists(ctx, keyArticleFocus) {
		return model.SentinelID
	}
	return m.GetInt64(ctx, keyArticleFocus)
}

// SetArticleFocus selects the article to pre-populate the edit form with.
func (m *Manager) SetArticleFocus(ctx context.Context, id int64) {
	m.Put(ctx, keyArticleFocus, id)
}

// ClearArticleFocus resets the focus to the sentinel.
func (m *Manager) ClearArticleFocus(ctx context.Context) {
	m.Put(ctx, keyArticleFocus, model.SentinelID)
}

// Flash pops the message stored under key. It returns "" when none is set.
func (m *Manager) Flash(ctx context.Context, key FlashKey) string {
	return m.PopString(ctx, string(key))
}

// SetFlash stores msg under key.
func (m *Manager) SetFlash(ctx context.Context, key FlashKey, msg string) {
	m.Put(ctx, string(key), msg)
}

// ClearFlash empties the message stored under key.
func (m *Manager) ClearFlash(ctx context.Context, key FlashKey) {
	m.Put(ctx, string(key), "")
}
