// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/quill/internal/model"
)

// CreateEventParams holds the columns of a new audit event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Username  string
	Metadata  string
	CreatedAt time.Time
}

const createEvent = `INSERT INTO events (level, category, message, username, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateEvent appends an audit event.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if arg.Metadata == "" {
		arg.Metadata = "{}"
	}
	_, err := q.db.ExecContext(ctx, createEvent,
		arg.Level, arg.Category, arg.Message, arg.Username, arg.Metadata, arg.CreatedAt.UTC())
	return wrap("create event", err)
}

const listEvents = `SELECT id, level, category, message, username, metadata, created_at
FROM events ORDER BY id DESC LIMIT ?`

// ListEvents returns the newest events first.
func (q *Queries) ListEvents(ctx context.Context, limit int) ([]model.Event, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.db.QueryContext(ctx, listEvents, limit)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Username, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, wrap("list events", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list events", err)
	}
	return items, nil
}

const deleteEventsBefore = `DELETE FROM events WHERE created_at < ?`

// DeleteEventsBefore prunes events older than t and returns how many went.
func (q *Queries) DeleteEventsBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	res, err := q.db.ExecContext(ctx, deleteEventsBefore, t.UTC())
	if err != nil {
		return 0, wrap("delete events", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("delete events", err)
}
