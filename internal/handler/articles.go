// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/model"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
)

// ArticlesHandler serves the article dashboard. Admins see and edit every
// article; other users are scoped to their own.
type ArticlesHandler struct {
	queries  *store.Queries
	renderer *render.Renderer
	sessions *session.Manager
}

// NewArticlesHandler creates a new ArticlesHandler.
func NewArticlesHandler(queries *store.Queries, renderer *render.Renderer, sessions *session.Manager) *ArticlesHandler {
	return &ArticlesHandler{queries: queries, renderer: renderer, sessions: sessions}
}

// ArticlesPage is the data of the article dashboard.
type ArticlesPage struct {
	Articles []model.Article
	// Focus pre-populates the editor; a sentinel id means a new article.
	Focus model.Article
}

// List renders the caller's visible articles and the editor.
func (h *ArticlesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username, _ := middleware.GetIdentity(r)
	isAdmin := middleware.IsAdmin(r)

	var (
		articles []model.Article
		err      error
	)
	if isAdmin {
		articles, err = h.queries.ListArticles(ctx)
	} else {
		articles, err = h.queries.ListArticlesByOwner(ctx, username)
	}
	if err != nil {
		logAndInternalError(w, "failed to list articles", "username", username, "error", err)
		return
	}

	focus, err := h.focusedArticle(r, username, isAdmin)
	if err != nil {
		logAndInternalError(w, "failed to load focused article", "username", username, "error", err)
		return
	}

	data := pageData(r, "Articles")
	data.Data = ArticlesPage{Articles: articles, Focus: focus}
	data.Flash = h.sessions.Flash(ctx, session.FlashCreateArticle)
	renderPage(w, h.renderer, pageDashboardArticles, data)
}

// focusedArticle returns the article selected for editing. A focus that no
// longer exists or is not visible to the caller resets to a new article.
func (h *ArticlesHandler) focusedArticle(r *http.Request, username string, isAdmin bool) (model.Article, error) {
	ctx := r.Context()
	blank := model.Article{ID: model.SentinelID, Owner: username}

	id := h.sessions.ArticleFocus(ctx)
	if id == model.SentinelID {
		return blank, nil
	}

	article, err := h.queries.GetArticle(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !isAdmin && !article.OwnedBy(username)) {
		h.sessions.ClearArticleFocus(ctx)
		return blank, nil
	}
	if err != nil {
		return model.Article{}, err
	}
	return article, nil
}

// Focus selects an article for the editor. The sentinel id resets the editor
// to a new article.
func (h *ArticlesHandler) Focus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		h.failed(w, r, "Invalid article id")
		return
	}
	if id == model.SentinelID {
		h.sessions.ClearArticleFocus(ctx)
		http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
		return
	}

	username, _ := middleware.GetIdentity(r)
	article, err := h.queries.GetArticle(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound), err == nil && !middleware.IsAdmin(r) && !article.OwnedBy(username):
		h.failed(w, r, fmt.Sprintf("Article '%d' was not found", id))
		return
	case err != nil:
		slog.Error("failed to load article", "article_id", id, "error", err)
		h.failed(w, r, "Failed to load article")
		return
	}

	h.sessions.SetArticleFocus(ctx, id)
	http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
}

// Save creates or updates the article {id} from the editor form. Admins may
// edit any article and keep its owner; other users can only update their own
// and a foreign id yields a new article owned by the caller.
func (h *ArticlesHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		h.failed(w, r, "Invalid article id")
		return
	}
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}

	username, _ := middleware.GetIdentity(r)
	article := model.Article{ID: id, Owner: username, Title: form.Title, Description: form.Description}

	var saved int64
	if middleware.IsAdmin(r) {
		saved, err = h.queries.UpsertArticle(ctx, article)
	} else {
		saved, err = h.queries.UpsertOwnArticle(ctx, article)
	}
	if err != nil {
		slog.Error("failed to save article", "article_id", id, "username", username, "error", err)
		h.failed(w, r, "Failed to save article")
		return
	}

	h.sessions.ClearArticleFocus(ctx)
	h.sessions.ClearFlash(ctx, session.FlashCreateArticle)
	slog.Info("article saved", "category", "article", "username", username, "article_id", saved)
	http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
}

// Create inserts a new article owned by the caller.
func (h *ArticlesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}

	username, _ := middleware.GetIdentity(r)
	id, err := h.queries.UpsertArticle(ctx, model.Article{
		ID:          model.SentinelID,
		Owner:       username,
		Title:       form.Title,
		Description: form.Description,
	})
	if err != nil {
		slog.Error("failed to create article", "username", username, "error", err)
		h.failed(w, r, "Failed to create article")
		return
	}

	h.sessions.ClearFlash(ctx, session.FlashCreateArticle)
	slog.Info("article created", "category", "article", "username", username, "article_id", id)
	http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
}

// Delete removes the article {id}. Non-admins can only remove their own;
// anything else is silently left alone.
func (h *ArticlesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		h.failed(w, r, "Invalid article id")
		return
	}

	username, _ := middleware.GetIdentity(r)
	if middleware.IsAdmin(r) {
		err = h.queries.DeleteArticle(ctx, id)
	} else {
		err = h.queries.DeleteOwnArticle(ctx, id, username)
	}
	if err != nil {
		slog.Error("failed to delete article", "article_id", id, "username", username, "error", err)
		h.failed(w, r, "Failed to delete article")
		return
	}

	if h.sessions.ArticleFocus(ctx) == id {
		h.sessions.ClearArticleFocus(ctx)
	}
	slog.Info("article deleted", "category", "article", "username", username, "article_id", id)
	http.Redirect(w, r, RouteDashboardArticles, http.StatusFound)
}

func (h *ArticlesHandler) parseForm(w http.ResponseWriter, r *http.Request) (articleForm, bool) {
	if err := r.ParseForm(); err != nil {
		h.failed(w, r, msgInvalidForm)
		return articleForm{}, false
	}
	form := articleForm{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
	}
	if err := form.Validate(); err != nil {
		h.failed(w, r, firstError(err, "title", "description"))
		return articleForm{}, false
	}
	return form, true
}

func (h *ArticlesHandler) failed(w http.ResponseWriter, r *http.Request, message string) {
	flashAndRedirect(w, r, h.sessions, session.FlashCreateArticle, RouteDashboardArticles, message)
}
