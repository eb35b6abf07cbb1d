// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/store"
)

// HomeHandler serves the public article listing.
type HomeHandler struct {
	queries  *store.Queries
	renderer *render.Renderer
}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler(queries *store.Queries, renderer *render.Renderer) *HomeHandler {
	return &HomeHandler{queries: queries, renderer: renderer}
}

// Index renders every article.
func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	articles, err := h.queries.ListArticles(r.Context())
	if err != nil {
		logAndInternalError(w, "failed to list articles", "error", err)
		return
	}

	data := pageData(r, "")
	data.Data = articles
	renderPage(w, h.renderer, pageIndex, data)
}
