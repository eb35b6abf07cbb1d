// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides the HTTP guards that compose identity
// resolution with capability checks, plus the ambient middleware stack.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/store"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// ContextKeyIdentity is the context key for the caller's username.
	ContextKeyIdentity ContextKey = "identity"
	// ContextKeyIsAdmin is the context key for the resolved admin flag.
	ContextKeyIsAdmin ContextKey = "is_admin"
)

// UnauthorizedBody is the plain-text body of every 401 response.
const UnauthorizedBody = "Unauthorized access"

// Identity resolves the identity cookie into the request context. It never
// rejects a request; anonymous callers simply carry no identity.
func Identity(cookies *auth.Cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, ok := cookies.Identity(r); ok {
				ctx := context.WithValue(r.Context(), ContextKeyIdentity, username)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity returns the caller's username from the request context.
func GetIdentity(r *http.Request) (string, bool) {
	username, ok := r.Context().Value(ContextKeyIdentity).(string)
	return username, ok && username != ""
}

// IsAdmin reports whether a guard resolved the caller as an administrator.
func IsAdmin(r *http.Request) bool {
	isAdmin, _ := r.Context().Value(ContextKeyIsAdmin).(bool)
	return isAdmin
}

// Guard turns an authz.Authorizer into route middleware.
type Guard struct {
	authorizer *authz.Authorizer
	cookies    *auth.Cookies
}

// NewGuard creates a Guard.
func NewGuard(authorizer *authz.Authorizer, cookies *auth.Cookies) *Guard {
	return &Guard{authorizer: authorizer, cookies: cookies}
}

// Require returns middleware enforcing level:
//
//   - LevelNone passes every request.
//   - LevelAuthenticated answers 401 for anonymous callers.
//   - LevelAdmin also needs the admin flag. Without a cached one it reads and
//     caches the flag, redirecting to the same URL under the sticky policy;
//     a false flag is a 401.
func (g *Guard) Require(level authz.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if level == authz.LevelNone {
				next.ServeHTTP(w, r)
				return
			}

			username, ok := GetIdentity(r)
			if !ok {
				Unauthorized(w)
				return
			}
			if level == authz.LevelAuthenticated {
				next.ServeHTTP(w, r)
				return
			}

			isAdmin, ok := g.capability(w, r, username)
			if !ok {
				return
			}
			if !isAdmin {
				slog.Warn("access denied",
					"category", "auth",
					"username", username,
					"method", r.Method,
					"path", r.URL.Path,
				)
				Unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyIsAdmin, true)))
		})
	}
}

// ResolveAdmin makes the cached admin flag available to routes that serve
// both admins and regular users. An uncached flag is read and cached, and
// under the sticky policy the request is redirected to itself; anonymous
// callers get a 401.
func (g *Guard) ResolveAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := GetIdentity(r)
		if !ok {
			Unauthorized(w)
			return
		}

		isAdmin, ok := g.capability(w, r, username)
		if !ok {
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyIsAdmin, isAdmin)))
	})
}

// capability returns the cached flag. When nothing is cached it reads and
// caches the flag. With the sticky policy it then writes a redirect to the
// current URL and returns false, so the handler only ever runs on a cached
// flag; otherwise the fresh flag is used for this request.
func (g *Guard) capability(w http.ResponseWriter, r *http.Request, username string) (bool, bool) {
	if isAdmin, ok := g.authorizer.Cached(r.Context(), username); ok {
		return isAdmin, true
	}

	isAdmin, err := g.authorizer.Refresh(r.Context(), username)
	if err != nil {
		g.ResolveFailed(w, r, username, err)
		return false, false
	}
	if !g.authorizer.Sticky() {
		return isAdmin, true
	}

	RedirectSelf(w, r)
	return false, false
}

// ResolveFailed writes the response for a failed admin lookup. An identity
// whose account no longer exists is dropped and answered with 401; any other
// failure is a 500.
func (g *Guard) ResolveFailed(w http.ResponseWriter, r *http.Request, username string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("identity refers to a missing account",
			"category", "auth",
			"username", username,
		)
		g.cookies.Forget(w)
		Unauthorized(w)
		return
	}

	slog.Error("failed to resolve admin flag", "username", username, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// RequireAnonymous redirects callers that already have an identity to target.
func RequireAnonymous(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetIdentity(r); ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectSelf re-dispatches the request to its own URL. Unsafe methods use
// 307 so the client repeats the method and body.
func RedirectSelf(w http.ResponseWriter, r *http.Request) {
	status := http.StatusFound
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusTemporaryRedirect
	}
	http.Redirect(w, r, r.URL.RequestURI(), status)
}

// Unauthorized writes the plain-text 401 response.
func Unauthorized(w http.ResponseWriter) {
	http.Error(w, UnauthorizedBody, http.StatusUnauthorized)
}
