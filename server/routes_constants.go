package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth flow
	RouteAuth     = "/auth"
	RouteCallback = "/oauth/callback"
	RouteLogout   = "/logout"

	// API Routes
	RouteAPIFrontDoor = "/api/frontdoor"
	RouteAPIMe        = "/api/me"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Client application root
	RouteRoot = "/"
)
