// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/olegiv/quill/internal/model"
)

const getCredentials = `SELECT username, password FROM users WHERE username = ?`

// GetCredentials returns the stored username and password, or ErrNotFound.
func (q *Queries) GetCredentials(ctx context.Context, username string) (model.Credentials, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var c model.Credentials
	err := q.db.QueryRowContext(ctx, getCredentials, username).Scan(&c.Username, &c.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, wrap("get credentials", err)
}

const listUsers = `SELECT id, username, is_admin FROM users ORDER BY id`

// ListUsers returns every user ordered by id. Passwords are never selected.
func (q *Queries) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.UserSummary
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.IsAdmin); err != nil {
			return nil, wrap("list users", err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list users", err)
	}
	return items, nil
}

const createUser = `INSERT INTO users (username, password, is_admin) VALUES (?, ?, 0)
ON CONFLICT(username) DO NOTHING`

// CreateUser inserts a non-admin user. The UNIQUE constraint on username
// makes the existence check and the insert one statement; a taken username
// yields ErrConflict and leaves the table unchanged.
func (q *Queries) CreateUser(ctx context.Context, username, password string) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	res, err := q.db.ExecContext(ctx, createUser, username, password)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return wrap("create user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("create user", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

const deleteUser = `DELETE FROM users WHERE id = ?`

// DeleteUser removes a user. A missing id is not an error.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return wrap("delete user", err)
}

const setUserAdmin = `UPDATE users SET is_admin = ? WHERE id = ?`

// SetUserAdmin promotes or demotes a user. A missing id is not an error.
func (q *Queries) SetUserAdmin(ctx context.Context, id int64, isAdmin bool) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	_, err := q.db.ExecContext(ctx, setUserAdmin, isAdmin, id)
	return wrap("set user admin", err)
}

const getUserIsAdmin = `SELECT is_admin FROM users WHERE username = ?`

// GetUserIsAdmin reads the admin flag for username, or ErrNotFound.
func (q *Queries) GetUserIsAdmin(ctx context.Context, username string) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var isAdmin bool
	err := q.db.QueryRowContext(ctx, getUserIsAdmin, username).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	return isAdmin, wrap("get user is_admin", err)
}

const countUsers = `SELECT COUNT(*) FROM users`

// CountUsers returns the number of accounts.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, wrap("count users", err)
}

const createAdmin = `INSERT INTO users (username, password, is_admin) VALUES (?, ?, 1)`

// CreateAdmin inserts an administrator account.
func (q *Queries) CreateAdmin(ctx context.Context, username, password string) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	res, err := q.db.ExecContext(ctx, createAdmin, username, password)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, wrap("create admin", err)
	}
	id, err := res.LastInsertId()
	return id, wrap("create admin", err)
}
