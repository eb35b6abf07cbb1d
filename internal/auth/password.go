// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth holds credential checks and the signed identity cookie.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Passwords decides how a password is stored and how a login attempt is
// compared against the stored value.
type Passwords interface {
	// Prepare returns the value to persist for a new password.
	Prepare(password string) (string, error)
	// Match reports whether attempt matches the stored value.
	Match(stored, attempt string) bool
}

// NewPasswords returns Argon2Passwords when hashing is enabled and
// PlainPasswords otherwise.
func NewPasswords(hashing bool) Passwords {
	if hashing {
		return Argon2Passwords{}
	}
	return PlainPasswords{}
}

// PlainPasswords stores passwords as given and compares them exactly.
// Hashing is opt-in through Argon2Passwords.
type PlainPasswords struct{}

func (PlainPasswords) Prepare(password string) (string, error) {
	return password, nil
}

func (PlainPasswords) Match(stored, attempt string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(attempt)) == 1
}

// Argon2 parameters (OWASP second choice: m=19456, t=2, p=1).
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

var errBadHash = errors.New("auth: malformed argon2id hash")

// Argon2Passwords stores argon2id hashes encoded as
// $argon2id$v=19$m=19456,t=2,p=1$salt$hash.
type Argon2Passwords struct{}

func (Argon2Passwords) Prepare(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (Argon2Passwords) Match(stored, attempt string) bool {
	ok, err := verifyArgon2(attempt, stored)
	return err == nil && ok
}

func verifyArgon2(attempt, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errBadHash
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false, errBadHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errBadHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errBadHash
	}

	got := argon2.IDKey([]byte(attempt), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
