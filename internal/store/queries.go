// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store is the persistence gateway: users, articles and audit events
// kept in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"
)

// DefaultQueryTimeout bounds a single statement, including the wait for a
// pooled connection.
const DefaultQueryTimeout = 5 * time.Second

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the application's statements. Every statement is its own
// atomic unit; there are no multi-statement transactions.
type Queries struct {
	db      DBTX
	timeout time.Duration
}

// New returns Queries bound to db with DefaultQueryTimeout.
func New(db DBTX) *Queries {
	return &Queries{db: db, timeout: DefaultQueryTimeout}
}

// WithTimeout returns a copy of q using d as the per-statement deadline.
// Zero disables the deadline.
func (q *Queries) WithTimeout(d time.Duration) *Queries {
	return &Queries{db: q.db, timeout: d}
}

func (q *Queries) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.timeout)
}
