// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// SeedAdmin describes the bootstrap administrator. Password is stored as
// given, so callers hash it first when password hashing is enabled.
type SeedAdmin struct {
	Username string
	Password string
}

// Seed creates the bootstrap administrator when the user table is empty.
func Seed(ctx context.Context, db *sql.DB, admin SeedAdmin) error {
	if admin.Username == "" || admin.Password == "" {
		slog.Debug("no bootstrap admin configured, skipping seed")
		return nil
	}

	queries := New(db)

	n, err := queries.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		slog.Info("users already exist, skipping seed")
		return nil
	}

	id, err := queries.CreateAdmin(ctx, admin.Username, admin.Password)
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created bootstrap admin user", "id", id, "username", admin.Username)
	return nil
}
