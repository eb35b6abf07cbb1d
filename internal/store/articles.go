// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/olegiv/quill/internal/model"
)

const listArticles = `SELECT id, owner, title, description FROM articles ORDER BY id`

// ListArticles returns every article ordered by id.
func (q *Queries) ListArticles(ctx context.Context) ([]model.Article, error) {
	return q.queryArticles(ctx, "list articles", listArticles)
}

const listArticlesByOwner = `SELECT id, owner, title, description FROM articles WHERE owner = ? ORDER BY id`

// ListArticlesByOwner returns the articles owned by owner, ordered by id.
func (q *Queries) ListArticlesByOwner(ctx context.Context, owner string) ([]model.Article, error) {
	return q.queryArticles(ctx, "list articles by owner", listArticlesByOwner, owner)
}

func (q *Queries) queryArticles(ctx context.Context, op, query string, args ...any) ([]model.Article, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Article
	for rows.Next() {
		var a model.Article
		if err := rows.Scan(&a.ID, &a.Owner, &a.Title, &a.Description); err != nil {
			return nil, wrap(op, err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return items, nil
}

const getArticle = `SELECT id, owner, title, description FROM articles WHERE id = ?`

// GetArticle returns one article, or ErrNotFound.
func (q *Queries) GetArticle(ctx context.Context, id int64) (model.Article, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var a model.Article
	err := q.db.QueryRowContext(ctx, getArticle, id).Scan(&a.ID, &a.Owner, &a.Title, &a.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, wrap("get article", err)
}

// The id column is filled from a sub-select: NULL (sentinel or unknown id)
// makes SQLite assign a fresh id, an existing id hits the primary key and
// turns the insert into an update of title and description.
const upsertArticle = `INSERT INTO articles (id, owner, title, description)
VALUES ((SELECT id FROM articles WHERE id = ?), ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    updated_at = CURRENT_TIMESTAMP
RETURNING id`

// UpsertArticle inserts a new article when a.ID is the sentinel or matches
// no row, and otherwise updates title and description in place. Owner and id
// of an existing row never change. It returns the row id.
func (q *Queries) UpsertArticle(ctx context.Context, a model.Article) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var id int64
	err := q.db.QueryRowContext(ctx, upsertArticle, lookupID(a), a.Owner, a.Title, a.Description).Scan(&id)
	return id, wrap("upsert article", err)
}

const upsertOwnArticle = `INSERT INTO articles (id, owner, title, description)
VALUES ((SELECT id FROM articles WHERE id = ? AND owner = ?), ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    updated_at = CURRENT_TIMESTAMP
RETURNING id`

// UpsertOwnArticle behaves like UpsertArticle but only updates a row owned
// by a.Owner. An id owned by someone else is treated as unknown, so a fresh
// article is inserted for a.Owner.
func (q *Queries) UpsertOwnArticle(ctx context.Context, a model.Article) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var id int64
	err := q.db.QueryRowContext(ctx, upsertOwnArticle, lookupID(a), a.Owner, a.Owner, a.Title, a.Description).Scan(&id)
	return id, wrap("upsert own article", err)
}

func lookupID(a model.Article) sql.NullInt64 {
	if a.IsNew() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: a.ID, Valid: true}
}

const deleteArticle = `DELETE FROM articles WHERE id = ?`

// DeleteArticle removes an article. A missing id is not an error.
func (q *Queries) DeleteArticle(ctx context.Context, id int64) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	_, err := q.db.ExecContext(ctx, deleteArticle, id)
	return wrap("delete article", err)
}

const deleteOwnArticle = `DELETE FROM articles WHERE id = ? AND owner = ?`

// DeleteOwnArticle removes an article owned by owner. Missing ids and
// foreign articles are left alone without error.
func (q *Queries) DeleteOwnArticle(ctx context.Context, id int64, owner string) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	_, err := q.db.ExecContext(ctx, deleteOwnArticle, id, owner)
	return wrap("delete own article", err)
}
