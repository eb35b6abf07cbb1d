// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/olegiv/quill/internal/store"
)

// TestLogger returns a logger that discards everything below ERROR.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB opens a migrated database in a temporary directory. It is closed
// when the test ends.
func TestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "quill-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// TestQueries is TestDB wrapped in store.Queries.
func TestQueries(t testing.TB) (*sql.DB, *store.Queries) {
	t.Helper()
	db := TestDB(t)
	return db, store.New(db)
}

// UserID returns the id of username, failing the test when it does not exist.
func UserID(t testing.TB, q *store.Queries, username string) int64 {
	t.Helper()
	users, err := q.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	for _, u := range users {
		if u.Username == username {
			return u.ID
		}
	}
	t.Fatalf("user %q not found", username)
	return 0
}
