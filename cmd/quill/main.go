// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/quill/internal/app"
	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/cache"
	"github.com/olegiv/quill/internal/config"
	"github.com/olegiv/quill/internal/emailcheck"
	"github.com/olegiv/quill/internal/handler"
	"github.com/olegiv/quill/internal/logging"
	"github.com/olegiv/quill/internal/metrics"
	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/scheduler"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
	"github.com/olegiv/quill/internal/version"
	"github.com/olegiv/quill/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "quill - articles with per-user ownership and an admin dashboard\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_SESSION_SECRET    Cookie signing key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_DB_PATH           SQLite database path (default: ./data/quill.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_ADMIN_PASSWORD    Bootstrap admin password, used when no users exist\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_REDIS_URL         Redis URL for the shared cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  QUILL_EMAIL_CHECK_URL   Email domain validation service (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(textHandler))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	dbCfg := store.DefaultDBConfig()
	dbCfg.MaxOpenConns = cfg.DBMaxOpenConns
	if dbCfg.MaxIdleConns > dbCfg.MaxOpenConns {
		dbCfg.MaxIdleConns = dbCfg.MaxOpenConns
	}
	db, err := store.NewDBWithConfig(cfg.DBPath, dbCfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	queries := store.New(db).WithTimeout(cfg.DBTimeout)

	// From here on WARN and ERROR records also land in the events table.
	slog.SetDefault(slog.New(logging.NewEventLogHandler(textHandler, queries)))
	slog.Info("database ready", "event_log_min_level", "warn")

	passwords := auth.NewPasswords(cfg.PasswordHashing)
	if err := seedAdmin(db, cfg, passwords); err != nil {
		return err
	}

	if err := metrics.RegisterDB(db); err != nil {
		slog.Warn("database metrics not registered", "error", err)
	}

	sessions := session.New(db, session.Config{
		Lifetime: cfg.SessionLifetime,
		Secure:   cfg.CookieSecure,
		Domain:   cfg.CookieDomain,
	})
	cookies, err := auth.NewCookies(auth.CookieConfig{
		Secret: []byte(cfg.SessionSecret),
		Domain: cfg.CookieDomain,
		MaxAge: cfg.IdentityMaxAge,
		Secure: cfg.CookieSecure,
	})
	if err != nil {
		return fmt.Errorf("initializing identity cookies: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisURL = cfg.RedisURL
	cacheCfg.Prefix = cfg.CachePrefix
	cacheCfg.DefaultTTL = cfg.CacheTTL
	sharedCache, cacheKind := cache.New(cacheCfg)
	defer func() { _ = sharedCache.Close() }()
	slog.Info("cache initialized", "type", cacheKind)
	if sp, ok := sharedCache.(cache.StatsProvider); ok {
		if err := metrics.RegisterCache(cacheKind, sp); err != nil {
			slog.Warn("cache metrics not registered", "error", err)
		}
	}

	healthChecks := map[string]handler.Pinger{}
	if p, ok := sharedCache.(handler.Pinger); ok {
		healthChecks["cache"] = p
	}

	emailChecker := emailcheck.New(cfg.EmailCheckURL, cfg.EmailCheckTimeout, sharedCache, cfg.CacheTTL)
	if cfg.EmailCheckEnabled() {
		slog.Info("email domain checking enabled", "endpoint", cfg.EmailCheckURL)
	}

	authorizer := authz.New(queries, sessions, authz.Options{
		Sticky: cfg.AdminCacheSticky,
		TTL:    cfg.AdminCacheTTL,
	})

	var loginProtection *middleware.LoginProtection
	if cfg.LoginMaxAttempts > 0 {
		lpCfg := middleware.DefaultLoginProtectionConfig()
		lpCfg.MaxFailedAttempts = cfg.LoginMaxAttempts
		loginProtection = middleware.NewLoginProtection(lpCfg)
		slog.Info("login protection initialized",
			"max_failed_attempts", lpCfg.MaxFailedAttempts,
			"lockout_duration", lpCfg.LockoutDuration,
		)
	}

	renderer, err := render.New(render.Config{TemplatesFS: web.TemplatesFS(), IsDev: cfg.IsDevelopment()})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	var staticFS fs.FS = web.StaticFS()
	if cfg.StaticDir != "" {
		staticFS = os.DirFS(cfg.StaticDir)
		slog.Info("serving static files from disk", "dir", cfg.StaticDir)
	}

	sched := scheduler.New(slog.Default(), time.Minute)
	if job, ok := scheduler.PruneEventsJob(queries, cfg.EventRetention, nil); ok {
		if err := sched.Add(job); err != nil {
			return err
		}
	}
	if loginProtection != nil {
		if err := sched.Add(scheduler.CleanupJob("login_protection_cleanup", loginProtection.Cleanup)); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	router := app.NewRouter(app.Deps{
		DB:              db,
		Queries:         queries,
		Renderer:        renderer,
		Sessions:        sessions,
		Cookies:         cookies,
		Authorizer:      authorizer,
		Passwords:       passwords,
		LoginProtection: loginProtection,
		EmailChecker:    emailChecker,
		HealthChecks:    healthChecks,
		StaticFS:        staticFS,
		Version:         info.Version,
		IsDev:           cfg.IsDevelopment(),
		ServerAddr:      cfg.ServerAddr(),
		CSRFKey:         []byte(cfg.SessionSecret),
		RequestTimeout:  cfg.RequestTimeout,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		RequestLogging:  true,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func seedAdmin(db *sql.DB, cfg *config.Config, passwords auth.Passwords) error {
	password := cfg.AdminPassword
	if password != "" {
		prepared, err := passwords.Prepare(password)
		if err != nil {
			return fmt.Errorf("preparing admin password: %w", err)
		}
		password = prepared
	}
	if err := store.Seed(context.Background(), db, store.SeedAdmin{
		Username: cfg.AdminUsername,
		Password: password,
	}); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
