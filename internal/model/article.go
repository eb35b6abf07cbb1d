// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// SentinelID marks an article that has not been persisted yet, and an empty
// article focus.
const SentinelID int64 = -1

// Article is a content record. Owner is a username; it is not a foreign key
// and may reference an account that no longer exists.
type Article struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IsNew reports whether the article still carries the sentinel id.
func (a Article) IsNew() bool {
	return a.ID == SentinelID
}

// OwnedBy reports whether username owns the article.
func (a Article) OwnedBy(username string) bool {
	return a.Owner == username
}
