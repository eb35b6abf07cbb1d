// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityCookieName is the cookie that carries the signed username.
const IdentityCookieName = "auth"

const issuer = "quill"

// ErrInvalidIdentity is returned for a missing, tampered or expired identity cookie.
var ErrInvalidIdentity = errors.New("auth: invalid identity")

// CookieConfig configures the identity cookie.
type CookieConfig struct {
	Secret []byte
	Domain string
	MaxAge time.Duration
	// Secure is off by default to match plain-HTTP deployments.
	Secure bool
}

// Cookies issues and verifies identity cookies. The cookie value is a signed
// HS256 token whose subject is the username; nothing is kept server side, so
// forgetting an identity only tells the client to drop its cookie.
type Cookies struct {
	secret []byte
	domain string
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewCookies builds a Cookies from cfg.
func NewCookies(cfg CookieConfig) (*Cookies, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: identity secret is required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Cookies{
		secret: cfg.Secret,
		domain: cfg.Domain,
		maxAge: cfg.MaxAge,
		secure: cfg.Secure,
		now:    time.Now,
	}, nil
}

type identityClaims struct {
	jwt.RegisteredClaims
}

// Remember sets the identity cookie for username.
func (c *Cookies) Remember(w http.ResponseWriter, username string) error {
	token, err := c.sign(username)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(token, int(c.maxAge.Seconds())))
	return nil
}

// Forget expires the identity cookie. It is safe to call when no identity is set.
func (c *Cookies) Forget(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

// Identity returns the verified username carried by r.
func (c *Cookies) Identity(r *http.Request) (string, bool) {
	ck, err := r.Cookie(IdentityCookieName)
	if err != nil || ck.Value == "" {
		return "", false
	}
	username, err := c.verify(ck.Value)
	if err != nil {
		return "", false
	}
	return username, true
}

func (c *Cookies) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     IdentityCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *Cookies) sign(username string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("auth: username is required")
	}

	now := c.now().UTC()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity: %w", err)
	}
	return signed, nil
}

func (c *Cookies) verify(token string) (string, error) {
	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidIdentity
	}
	return claims.Subject, nil
}
