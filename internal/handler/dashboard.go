// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
)

// DashboardHandler serves the dashboard entry point and user administration.
type DashboardHandler struct {
	queries    *store.Queries
	renderer   *render.Renderer
	sessions   *session.Manager
	authorizer *authz.Authorizer
	guard      *middleware.Guard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(queries *store.Queries, renderer *render.Renderer, sessions *session.Manager, authorizer *authz.Authorizer, guard *middleware.Guard) *DashboardHandler {
	return &DashboardHandler{
		queries:    queries,
		renderer:   renderer,
		sessions:   sessions,
		authorizer: authorizer,
		guard:      guard,
	}
}

// Dashboard resolves the caller's admin flag (caching it) and redirects
// admins to user management and everyone else to their articles.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.GetIdentity(r)

	isAdmin, err := h.authorizer.Resolve(r.Context(), username)
	if err != nil {
		h.guard.ResolveFailed(w, r, username, err)
		return
	}

	if isAdmin {
		http.Redirect(w, r, RouteDashboardUsers, http.StatusFound)
		return
	}
	http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
}

// Users lists every account.
func (h *DashboardHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.queries.ListUsers(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list users", "error", err)
		return
	}

	data := pageData(r, "Users")
	data.Data = users
	data.Flash = h.sessions.Flash(r.Context(), session.FlashDashboard)
	renderPage(w, h.renderer, pageDashboardUsers, data)
}

// DeleteUser handles GET /dashboard/users/delete/{id}.
func (h *DashboardHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.mutateUser(w, r, "delete", h.queries.DeleteUser)
}

// PromoteUser handles GET /dashboard/users/promote/{id}.
func (h *DashboardHandler) PromoteUser(w http.ResponseWriter, r *http.Request) {
	h.mutateUser(w, r, "promote", func(ctx context.Context, id int64) error {
		return h.queries.SetUserAdmin(ctx, id, true)
	})
}

// DemoteUser handles GET /dashboard/users/demote/{id}.
func (h *DashboardHandler) DemoteUser(w http.ResponseWriter, r *http.Request) {
	h.mutateUser(w, r, "demote", func(ctx context.Context, id int64) error {
		return h.queries.SetUserAdmin(ctx, id, false)
	})
}

func (h *DashboardHandler) mutateUser(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, int64) error) {
	id, err := parseID(r)
	if err != nil {
		flashAndRedirect(w, r, h.sessions, session.FlashDashboard, RouteDashboardUsers, "Invalid user id")
		return
	}

	if err := apply(r.Context(), id); err != nil {
		slog.Error("failed to "+action+" user", "user_id", id, "error", err)
		flashAndRedirect(w, r, h.sessions, session.FlashDashboard, RouteDashboardUsers, "Failed to "+action+" user")
		return
	}

	admin, _ := middleware.GetIdentity(r)
	slog.Info("user "+action+"d", "category", "user", "username", admin, "user_id", id)
	http.Redirect(w, r, RouteDashboardUsers, http.StatusFound)
}
