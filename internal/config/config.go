// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"QUILL_ENV" envDefault:"development"`
	ServerHost string `env:"QUILL_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"QUILL_SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"QUILL_LOG_LEVEL" envDefault:"info"`
	StaticDir  string `env:"QUILL_STATIC_DIR"` // Serve static files from disk instead of the embedded copy

	// Database
	DBPath         string        `env:"QUILL_DB_PATH" envDefault:"./data/quill.db"`
	DBMaxOpenConns int           `env:"QUILL_DB_MAX_OPEN_CONNS" envDefault:"8"`
	DBTimeout      time.Duration `env:"QUILL_DB_TIMEOUT" envDefault:"5s"` // Per statement, including the wait for a connection

	// Sessions and identity
	SessionSecret   string        `env:"QUILL_SESSION_SECRET,required"`
	SessionLifetime time.Duration `env:"QUILL_SESSION_LIFETIME" envDefault:"24h"`
	CookieDomain    string        `env:"QUILL_COOKIE_DOMAIN"`
	CookieSecure    bool          `env:"QUILL_COOKIE_SECURE" envDefault:"false"`
	IdentityMaxAge  time.Duration `env:"QUILL_IDENTITY_MAX_AGE" envDefault:"24h"`

	// Authorization
	AdminCacheSticky bool          `env:"QUILL_ADMIN_CACHE_STICKY" envDefault:"true"`
	AdminCacheTTL    time.Duration `env:"QUILL_ADMIN_CACHE_TTL" envDefault:"0s"` // Only used when not sticky
	PasswordHashing  bool          `env:"QUILL_PASSWORD_HASHING" envDefault:"false"`

	// Request handling
	RequestTimeout   time.Duration `env:"QUILL_REQUEST_TIMEOUT" envDefault:"30s"`
	LoginMaxAttempts int           `env:"QUILL_LOGIN_MAX_ATTEMPTS" envDefault:"5"` // 0 disables login protection
	RateLimit        float64       `env:"QUILL_RATE_LIMIT" envDefault:"20"`        // Requests per second per IP, 0 disables
	RateBurst        int           `env:"QUILL_RATE_BURST" envDefault:"40"`

	// Cache configuration
	RedisURL    string        `env:"QUILL_REDIS_URL"` // Optional Redis URL for shared caching
	CachePrefix string        `env:"QUILL_CACHE_PREFIX" envDefault:"quill:"`
	CacheTTL    time.Duration `env:"QUILL_CACHE_TTL" envDefault:"1h"`

	// Email validation service used on registration
	EmailCheckURL     string        `env:"QUILL_EMAIL_CHECK_URL"`
	EmailCheckTimeout time.Duration `env:"QUILL_EMAIL_CHECK_TIMEOUT" envDefault:"5s"`

	// Bootstrap admin, created when the user table is empty
	AdminUsername string `env:"QUILL_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"QUILL_ADMIN_PASSWORD"`

	// Event log retention
	EventRetention time.Duration `env:"QUILL_EVENT_RETENTION" envDefault:"720h"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// EmailCheckEnabled returns true if an email validation service is configured.
func (c Config) EmailCheckEnabled() bool {
	return c.EmailCheckURL != ""
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("QUILL_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("QUILL_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if cfg.DBMaxOpenConns < 1 {
		return nil, fmt.Errorf("QUILL_DB_MAX_OPEN_CONNS must be positive, got %d", cfg.DBMaxOpenConns)
	}
	if cfg.AdminCacheTTL < 0 {
		return nil, fmt.Errorf("QUILL_ADMIN_CACHE_TTL must not be negative")
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("QUILL_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}
	if !cfg.CookieSecure && !cfg.IsDevelopment() {
		slog.Warn("identity and session cookies are not marked Secure; set QUILL_COOKIE_SECURE=true behind TLS")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
