// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
)

var errInvalidID = errors.New("invalid id")

// flashAndRedirect stores message under key and redirects to url with 302.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, sessions *session.Manager, key session.FlashKey, url, message string) {
	sessions.SetFlash(r.Context(), key, message)
	http.Redirect(w, r, url, http.StatusFound)
}

// logAndHTTPError logs an error and writes an HTTP error response.
func logAndHTTPError(w http.ResponseWriter, message string, statusCode int, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	http.Error(w, message, statusCode)
}

// logAndInternalError logs an error and writes a 500 Internal Server Error response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	logAndHTTPError(w, "Internal Server Error", http.StatusInternalServerError, logMsg, args...)
}

// parseID reads the {id} route parameter. Negative values are accepted since
// the sentinel id is part of the URL space.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

// pageData fills the fields every page shares from the request context.
func pageData(r *http.Request, title string) render.TemplateData {
	username, loggedIn := middleware.GetIdentity(r)
	return render.TemplateData{
		Title:      title,
		IsLoggedIn: loggedIn,
		Username:   username,
		IsAdmin:    middleware.IsAdmin(r),
	}
}

// renderPage renders a page; a template failure becomes a 500.
func renderPage(w http.ResponseWriter, renderer *render.Renderer, name string, data render.TemplateData) {
	if err := renderer.Render(w, name, data); err != nil {
		logAndInternalError(w, "failed to render page", "page", name, "error", err)
	}
}
