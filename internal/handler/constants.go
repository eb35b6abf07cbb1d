// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route patterns for chi router registration.
const (
	RouteRoot     = "/"
	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteRegister = "/register"
	RouteHealth   = "/health"
	RouteMetrics  = "/metrics"

	RouteDashboard         = "/dashboard"
	RouteDashboardUsers    = "/dashboard/users"
	RouteDashboardArticles = "/dashboard/articles"

	// RouteArticle accepts new articles from the dashboard form.
	RouteArticle = "/article"

	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"

	RouteSuffixDelete  = "/delete"
	RouteSuffixPromote = "/promote"
	RouteSuffixDemote  = "/demote"
	RouteSuffixFocus   = "/focus"
)

// Page template names.
const (
	pageIndex             = "index"
	pageLogin             = "login"
	pageRegister          = "register"
	pageDashboardUsers    = "dashboard_users"
	pageDashboardArticles = "dashboard_articles"
)
