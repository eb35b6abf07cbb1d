// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models shared by the store, handlers and
// templates: users, articles and audit events.
package model

// UserSummary is a user as shown in listings. It has no password field.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Credentials is the username/password pair a login is checked against.
type Credentials struct {
	Username string
	Password string
}
