// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/emailcheck"
	"github.com/olegiv/quill/internal/metrics"
	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
)

// Messages shown on the login and register forms.
const (
	msgBadPassword    = "Bad password"
	msgAccountLocked  = "Too many failed attempts. Please try again later."
	msgInvalidForm    = "Invalid form data"
	msgLoginFailed    = "Login failed, please try again"
	msgRegisterFailed = "Registration failed, please try again"
	msgEmailBlocked   = "This email domain is not accepted"
)

// AuthHandler handles login, logout and registration.
type AuthHandler struct {
	queries         *store.Queries
	renderer        *render.Renderer
	sessions        *session.Manager
	cookies         *auth.Cookies
	passwords       auth.Passwords
	loginProtection *middleware.LoginProtection
	emailChecker    emailcheck.Checker
}

// AuthDeps groups the collaborators of AuthHandler. LoginProtection may be
// nil; EmailChecker defaults to emailcheck.Disabled.
type AuthDeps struct {
	Queries         *store.Queries
	Renderer        *render.Renderer
	Sessions        *session.Manager
	Cookies         *auth.Cookies
	Passwords       auth.Passwords
	LoginProtection *middleware.LoginProtection
	EmailChecker    emailcheck.Checker
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(deps AuthDeps) *AuthHandler {
	if deps.Passwords == nil {
		deps.Passwords = auth.PlainPasswords{}
	}
	if deps.EmailChecker == nil {
		deps.EmailChecker = emailcheck.Disabled{}
	}
	return &AuthHandler{
		queries:         deps.Queries,
		renderer:        deps.Renderer,
		sessions:        deps.Sessions,
		cookies:         deps.Cookies,
		passwords:       deps.Passwords,
		loginProtection: deps.LoginProtection,
		emailChecker:    deps.EmailChecker,
	}
}

// LoginForm renders the login page with the pending login failure, if any.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Log in")
	data.Flash = h.sessions.Flash(r.Context(), session.FlashLogin)
	renderPage(w, h.renderer, pageLogin, data)
}

// Login checks the submitted credentials. On success the identity cookie is
// issued and the caller is sent home; otherwise the reason is flashed back
// to the login form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		flashAndRedirect(w, r, h.sessions, session.FlashLogin, RouteLogin, msgInvalidForm)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if h.loginProtection != nil && h.loginProtection.IsLocked(username) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		slog.Warn("login attempt on locked account", "category", "auth", "username", username)
		flashAndRedirect(w, r, h.sessions, session.FlashLogin, RouteLogin, msgAccountLocked)
		return
	}

	creds, err := h.queries.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("login failed: user not found", "category", "auth", "username", username)
			h.loginFailed(w, r, username, fmt.Sprintf("User '%s' was not found", username))
			return
		}
		slog.Error("database error during login", "username", username, "error", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		flashAndRedirect(w, r, h.sessions, session.FlashLogin, RouteLogin, msgLoginFailed)
		return
	}

	if !h.passwords.Match(creds.Password, password) {
		slog.Warn("login failed: invalid password", "category", "auth", "username", username)
		h.loginFailed(w, r, username, msgBadPassword)
		return
	}

	// New identity: new session token and no inherited admin flag.
	if err := h.sessions.RenewToken(ctx); err != nil {
		logAndInternalError(w, "failed to renew session token", "error", err)
		return
	}
	h.sessions.ClearAdminFlag(ctx)

	if err := h.cookies.Remember(w, creds.Username); err != nil {
		logAndInternalError(w, "failed to issue identity cookie", "username", username, "error", err)
		return
	}
	if h.loginProtection != nil {
		h.loginProtection.RecordSuccess(username)
	}
	h.sessions.ClearFlash(ctx, session.FlashLogin)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	slog.Info("user logged in", "username", creds.Username)

	http.Redirect(w, r, RouteRoot, http.StatusFound)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, username, message string) {
	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	if h.loginProtection != nil && h.loginProtection.RecordFailure(username) {
		message = msgAccountLocked
	}
	flashAndRedirect(w, r, h.sessions, session.FlashLogin, RouteLogin, message)
}

// Logout drops the identity cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Forget(w)
	h.sessions.ClearAdminFlag(r.Context())
	if username, ok := middleware.GetIdentity(r); ok {
		slog.Info("user logged out", "username", username)
	}
	http.Redirect(w, r, RouteRoot, http.StatusFound)
}

// RegisterForm renders the registration page with the pending failure, if any.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Register")
	data.Flash = h.sessions.Flash(r.Context(), session.FlashRegister)
	renderPage(w, h.renderer, pageRegister, data)
}

// Register creates a regular account and sends the caller to the login page.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.registerFailed(w, r, "invalid", msgInvalidForm)
		return
	}
	form := registerForm{
		Username:        r.PostFormValue("username"),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirm"),
	}
	if err := form.Validate(); err != nil {
		h.registerFailed(w, r, "invalid", firstError(err, "username", "email", "password", "password_confirm"))
		return
	}

	if err := h.emailChecker.Check(ctx, form.Email); err != nil {
		if errors.Is(err, emailcheck.ErrBlocked) {
			h.registerFailed(w, r, "blocked", msgEmailBlocked)
			return
		}
		// The checker is advisory; an unreachable service does not block sign-up.
		slog.Warn("email check unavailable", "category", "auth", "error", err)
	}

	stored, err := h.passwords.Prepare(form.Password)
	if err != nil {
		slog.Error("failed to prepare password", "error", err)
		h.registerFailed(w, r, "error", msgRegisterFailed)
		return
	}

	if err := h.queries.CreateUser(ctx, form.Username, stored); err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.registerFailed(w, r, "conflict", fmt.Sprintf("User '%s' already exists", form.Username))
			return
		}
		slog.Error("failed to create user", "username", form.Username, "error", err)
		h.registerFailed(w, r, "error", msgRegisterFailed)
		return
	}

	h.sessions.ClearFlash(ctx, session.FlashRegister)
	metrics.Registrations.WithLabelValues("success").Inc()
	slog.Info("user registered", "category", "user", "username", form.Username)

	http.Redirect(w, r, RouteLogin, http.StatusFound)
}

func (h *AuthHandler) registerFailed(w http.ResponseWriter, r *http.Request, outcome, message string) {
	metrics.Registrations.WithLabelValues(outcome).Inc()
	flashAndRedirect(w, r, h.sessions, session.FlashRegister, RouteRegister, message)
}
