// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/olegiv/quill/internal/model"
)

func (e *testEnv) articlesOf(owner string) []model.Article {
	e.t.Helper()
	articles, err := e.queries.ListArticlesByOwner(context.Background(), owner)
	if err != nil {
		e.t.Fatalf("ListArticlesByOwner: %v", err)
	}
	return articles
}

func TestArticles_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice", "pw")
	env.createUser("bob", "pw")
	env.login("alice", "pw")

	resp, _ := env.post(RouteArticle, url.Values{"title": {"Hello"}, "description": {"first *post*"}})
	assertRedirect(t, resp, RouteDashboardArticles)

	articles := env.articlesOf("alice")
	if len(articles) != 1 || articles[0].Title != "Hello" {
		t.Fatalf("alice's articles = %+v", articles)
	}

	resp, body := env.page(RouteDashboardArticles)
	assertStatus(t, resp.StatusCode, http.StatusOK)
	if !strings.Contains(body, "Hello") || !strings.Contains(body, "Your articles") {
		t.Error("dashboard does not list the new article")
	}
	if !strings.Contains(body, `action="/dashboard/articles/-1"`) {
		t.Error("editor is not in new-article mode")
	}

	// Bob does not see Alice's article on his dashboard.
	env.client = env.newClient()
	env.login("bob", "pw")
	_, body = env.page(RouteDashboardArticles)
	if strings.Contains(body, "Hello") {
		t.Error("bob sees alice's article")
	}

	// Everyone sees it on the home page, rendered as markdown.
	_, body = env.get(RouteRoot)
	if !strings.Contains(body, "<em>post</em>") {
		t.Error("home page does not render the markdown description")
	}
}

func TestArticles_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice", "pw")
	env.login("alice", "pw")

	resp, _ := env.post(RouteArticle, url.Values{"title": {"   "}})
	assertRedirect(t, resp, RouteDashboardArticles)
	_, body := env.page(RouteDashboardArticles)
	assertFlash(t, body, "Title is required")

	if got := env.articlesOf("alice"); len(got) != 0 {
		t.Errorf("invalid article stored: %+v", got)
	}

	// The failure is shown once.
	_, body = env.page(RouteDashboardArticles)
	assertNoFlash(t, body)
}

func TestArticles_FocusAndSave(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice", "pw")
	env.login("alice", "pw")

	env.post(RouteArticle, url.Values{"title": {"Draft"}, "description": {"v1"}})
	id := env.articlesOf("alice")[0].ID

	resp, _ := env.get(fmt.Sprintf("/dashboard/articles/focus/%d", id))
	assertRedirect(t, resp, RouteDashboardArticles)

	_, body := env.page(RouteDashboardArticles)
	if !strings.Contains(body, fmt.Sprintf(`action="/dashboard/articles/%d"`, id)) || !strings.Contains(body, `value="Draft"`) {
		t.Fatal("editor is not pre-populated with the focused article")
	}

	resp, _ = env.post(fmt.Sprintf("/dashboard/articles/%d", id), url.Values{"title": {"Final"}, "description": {"v2"}})
	assertRedirect(t, resp, RouteDashboardArticles)

	articles := env.articlesOf("alice")
	if len(articles) != 1 || articles[0].ID != id || articles[0].Title != "Final" || articles[0].Description != "v2" {
		t.Fatalf("articles after save = %+v", articles)
	}

	// Saving resets the focus.
	_, body = env.page(RouteDashboardArticles)
	if !strings.Contains(body, `action="/dashboard/articles/-1"`) {
		t.Error("focus was not cleared after saving")
	}

	// The sentinel id through the editor form inserts.
	env.post("/dashboard/articles/-1", url.Values{"title": {"Second"}})
	if got := env.articlesOf("alice"); len(got) != 2 {
		t.Errorf("articles after sentinel save = %d, want 2", len(got))
	}
}

func TestArticles_OwnershipBoundaries(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice", "pw")
	env.createUser("mallory", "pw")
	env.login("alice", "pw")
	env.post(RouteArticle, url.Values{"title": {"Alice's"}, "description": {"mine"}})
	aliceID := env.articlesOf("alice")[0].ID

	env.client = env.newClient()
	env.login("mallory", "pw")

	// Focusing a foreign article is refused.
	resp, _ := env.get(fmt.Sprintf("/dashboard/articles/focus/%d", aliceID))
	assertRedirect(t, resp, RouteDashboardArticles)
	_, body := env.page(RouteDashboardArticles)
	assertFlash(t, body, fmt.Sprintf("Article '%d' was not found", aliceID))

	// Saving under a foreign id creates mallory's own article.
	env.post(fmt.Sprintf("/dashboard/articles/%d", aliceID), url.Values{"title": {"Hijack"}})
	alice := env.articlesOf("alice")
	if len(alice) != 1 || alice[0].Title != "Alice's" {
		t.Errorf("alice's article changed: %+v", alice)
	}
	mallory := env.articlesOf("mallory")
	if len(mallory) != 1 || mallory[0].ID == aliceID {
		t.Errorf("mallory's articles = %+v", mallory)
	}

	// Deleting a foreign article is a no-op.
	resp, _ = env.get(fmt.Sprintf("/dashboard/articles/delete/%d", aliceID))
	assertRedirect(t, resp, RouteDashboardArticles)
	if got := env.articlesOf("alice"); len(got) != 1 {
		t.Error("mallory deleted alice's article")
	}

	// Her own article she can delete.
	env.get(fmt.Sprintf("/dashboard/articles/delete/%d", mallory[0].ID))
	if got := env.articlesOf("mallory"); len(got) != 0 {
		t.Error("own article not deleted")
	}
}

func TestArticles_AdminEditsKeepOwner(t *testing.T) {
	env := newTestEnv(t)
	env.createAdmin("root", "rootpw")
	env.createUser("alice", "pw")
	env.login("alice", "pw")
	env.post(RouteArticle, url.Values{"title": {"Original"}})
	id := env.articlesOf("alice")[0].ID

	env.client = env.newClient()
	env.login("root", "rootpw")

	_, body := env.page(RouteDashboardArticles)
	if !strings.Contains(body, "All articles") || !strings.Contains(body, "Original") {
		t.Fatal("admin does not see every article")
	}

	env.get(fmt.Sprintf("/dashboard/articles/focus/%d", id))
	env.post(fmt.Sprintf("/dashboard/articles/%d", id), url.Values{"title": {"Edited"}})

	got, err := env.queries.GetArticle(context.Background(), id)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got.Title != "Edited" || got.Owner != "alice" {
		t.Errorf("article after admin edit = %+v", got)
	}

	env.get(fmt.Sprintf("/dashboard/articles/delete/%d", id))
	if got := env.articlesOf("alice"); len(got) != 0 {
		t.Error("admin could not delete a foreign article")
	}
}

func TestArticles_RequireIdentity(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{RouteDashboardArticles, "/dashboard/articles/focus/1", "/dashboard/articles/delete/1"} {
		resp, _ := env.get(path)
		assertStatus(t, resp.StatusCode, http.StatusUnauthorized)
	}
	resp, _ := env.post(RouteArticle, url.Values{"title": {"x"}})
	assertStatus(t, resp.StatusCode, http.StatusUnauthorized)
}

// An uncached flag on a form post is resolved and the post replayed with 307.
func TestArticles_SaveWithUncachedFlag(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("alice", "pw")

	resp, _ := env.post(RouteLogin, url.Values{"username": {"alice"}, "password": {"pw"}})
	assertRedirect(t, resp, RouteRoot)

	resp, _ = env.post("/dashboard/articles/-1", url.Values{"title": {"t"}})
	assertStatus(t, resp.StatusCode, http.StatusTemporaryRedirect)
	if loc := resp.Header.Get("Location"); loc != "/dashboard/articles/-1" {
		t.Errorf("Location = %q", loc)
	}

	resp, _ = env.post("/dashboard/articles/-1", url.Values{"title": {"t"}})
	assertRedirect(t, resp, RouteDashboardArticles)
	if got := env.articlesOf("alice"); len(got) != 1 {
		t.Errorf("articles = %d, want 1", len(got))
	}
}
