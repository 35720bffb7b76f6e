package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Landing page, the redirect target of every gate
	RouteLanding = "/"

	// Auth Routes - Login & Logout
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Protected pages
	RouteProfile = "/profile"
	RouteAdmin   = "/admin"

	// Session Routes
	RouteSessionStatus = "/session/status"
	RouteSessionCheck  = "/session/check"

	// REST API proxy (prefix)
	RouteAPI = "/api/"
)
