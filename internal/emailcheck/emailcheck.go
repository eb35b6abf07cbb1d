// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package emailcheck asks an external service whether an email domain may be
// used for registration. Verdicts are cached per domain.
package emailcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/quill/internal/cache"
)

const (
	defaultTimeout = 5 * time.Second
	cacheKeyPrefix = "emailcheck:"
)

var (
	// ErrBlocked is returned for a domain the service rejects.
	ErrBlocked = errors.New("email domain is not allowed")

	// ErrInvalidAddress is returned when no domain can be extracted.
	ErrInvalidAddress = errors.New("invalid email address")
)

// Checker validates the email address given at registration.
type Checker interface {
	// Check returns nil for an allowed or empty address, an error wrapping
	// ErrBlocked for a rejected domain, and any other error when the service
	// could not be asked.
	Check(ctx context.Context, email string) error
}

// Verdict is the service's answer for one domain.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Disabled accepts every address.
type Disabled struct{}

func (Disabled) Check(context.Context, string) error { return nil }

// HTTPChecker posts the domain to a verification endpoint and decodes a
// Verdict from the JSON response.
type HTTPChecker struct {
	endpoint string
	client   *http.Client
	verdicts *cache.TypedCache[Verdict]
}

// NewHTTPChecker creates a checker for endpoint. Verdicts are kept in c for ttl.
func NewHTTPChecker(endpoint string, timeout time.Duration, c cache.Cache, ttl time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		verdicts: cache.NewTypedCache[Verdict](c, ttl),
	}
}

// New returns an HTTPChecker when endpoint is set, Disabled otherwise.
func New(endpoint string, timeout time.Duration, c cache.Cache, ttl time.Duration) Checker {
	if endpoint == "" {
		return Disabled{}
	}
	return NewHTTPChecker(endpoint, timeout, c, ttl)
}

func (h *HTTPChecker) Check(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	domain, err := Domain(email)
	if err != nil {
		return err
	}

	v, err := h.verdicts.GetOrSet(ctx, cacheKeyPrefix+domain, func() (Verdict, error) {
		return h.lookup(ctx, domain)
	})
	if err != nil {
		return err
	}
	if !v.Allowed {
		slog.Warn("registration email domain rejected", "category", "auth", "domain", domain, "reason", v.Reason)
		if v.Reason != "" {
			return fmt.Errorf("%w: %s", ErrBlocked, v.Reason)
		}
		return ErrBlocked
	}
	return nil
}

func (h *HTTPChecker) lookup(ctx context.Context, domain string) (Verdict, error) {
	data := url.Values{}
	data.Set("domain", domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return Verdict{}, fmt.Errorf("building email check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("email check request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("email check returned status %d", resp.StatusCode)
	}

	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse email check response: %w", err)
	}
	return v, nil
}

// Domain returns the lower-cased domain part of email.
func Domain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(email[at+1:]), nil
}
