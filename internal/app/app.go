// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package app assembles the HTTP router from the handlers and middleware.
package app

import (
	"database/sql"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/quill/internal/auth"
	"github.com/olegiv/quill/internal/authz"
	"github.com/olegiv/quill/internal/emailcheck"
	"github.com/olegiv/quill/internal/handler"
	"github.com/olegiv/quill/internal/metrics"
	"github.com/olegiv/quill/internal/middleware"
	"github.com/olegiv/quill/internal/render"
	"github.com/olegiv/quill/internal/session"
	"github.com/olegiv/quill/internal/store"
)

// Deps are the collaborators the router is built from.
type Deps struct {
	DB         *sql.DB
	// Queries defaults to store.New(DB).
	Queries    *store.Queries
	Renderer   *render.Renderer
	Sessions   *session.Manager
	Cookies    *auth.Cookies
	Authorizer *authz.Authorizer
	Passwords  auth.Passwords

	// LoginProtection is nil when lockout is disabled.
	LoginProtection *middleware.LoginProtection
	EmailChecker    emailcheck.Checker
	HealthChecks    map[string]handler.Pinger

	StaticFS fs.FS
	Version  string

	IsDev          bool
	ServerAddr     string
	CSRFKey        []byte
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	// RequestLogging enables chi's access log on stdout.
	RequestLogging bool
}

// NewRouter wires every route of the application.
func NewRouter(d Deps) http.Handler {
	queries := d.Queries
	if queries == nil {
		queries = store.New(d.DB)
	}
	guard := middleware.NewGuard(d.Authorizer, d.Cookies)

	authH := handler.NewAuthHandler(handler.AuthDeps{
		Queries:         queries,
		Renderer:        d.Renderer,
		Sessions:        d.Sessions,
		Cookies:         d.Cookies,
		Passwords:       d.Passwords,
		LoginProtection: d.LoginProtection,
		EmailChecker:    d.EmailChecker,
	})
	homeH := handler.NewHomeHandler(queries, d.Renderer)
	dashH := handler.NewDashboardHandler(queries, d.Renderer, d.Sessions, d.Authorizer, guard)
	articlesH := handler.NewArticlesHandler(queries, d.Renderer, d.Sessions)
	healthH := handler.NewHealthHandler(d.DB, d.Version, d.HealthChecks)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.RequestLogging {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(d.IsDev)))
	r.Use(chimw.StripSlashes)
	r.Use(middleware.RateLimit(d.RateLimit, d.RateBurst))
	r.Use(d.Sessions.LoadAndSave)
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig(d.CSRFKey, d.ServerAddr, d.IsDev)))
	r.Use(middleware.Identity(d.Cookies))

	r.Get(handler.RouteRoot, homeH.Index)
	r.Get(handler.RouteLogout, authH.Logout)
	r.Get(handler.RouteHealth, healthH.Health)
	r.Handle(handler.RouteMetrics, metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAnonymous(handler.RouteRoot))
		r.Get(handler.RouteLogin, authH.LoginForm)
		r.Get(handler.RouteRegister, authH.RegisterForm)
		r.Post(handler.RouteRegister, authH.Register)

		r.Group(func(r chi.Router) {
			if d.LoginProtection != nil {
				r.Use(d.LoginProtection.Middleware())
			}
			r.Post(handler.RouteLogin, authH.Login)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAuthenticated))
		r.Get(handler.RouteDashboard, dashH.Dashboard)
		r.Post(handler.RouteArticle, articlesH.Create)
	})

	r.Route(handler.RouteDashboardUsers, func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAdmin))
		r.Get("/", dashH.Users)
		r.Get(handler.RouteSuffixDelete+handler.RouteParamID, dashH.DeleteUser)
		r.Get(handler.RouteSuffixPromote+handler.RouteParamID, dashH.PromoteUser)
		r.Get(handler.RouteSuffixDemote+handler.RouteParamID, dashH.DemoteUser)
	})

	r.Route(handler.RouteDashboardArticles, func(r chi.Router) {
		r.Use(guard.Require(authz.LevelAuthenticated), guard.ResolveAdmin)
		r.Get("/", articlesH.List)
		r.Get(handler.RouteSuffixFocus+handler.RouteParamID, articlesH.Focus)
		r.Post(handler.RouteParamID, articlesH.Save)
		r.Get(handler.RouteSuffixDelete+handler.RouteParamID, articlesH.Delete)
	})

	if d.StaticFS != nil {
		r.Get("/*", http.FileServer(http.FS(d.StaticFS)).ServeHTTP)
	}

	slog.Debug("router initialized",
		"login_protection", d.LoginProtection != nil,
		"rate_limit", d.RateLimit,
		"request_timeout", d.RequestTimeout,
	)
	return r
}
