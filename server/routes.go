package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// OAuth flow
	s.RegisterRouteHandler("GET "+RouteAuth, ChainMiddleware(s.AuthHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// API routes used by the embedded client
	s.RegisterRouteHandler("GET "+RouteAPIFrontDoor, ChainMiddleware(s.FrontDoorHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())

	// Static client application
	s.RegisterRouteHandler("GET "+RouteRoot, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}
