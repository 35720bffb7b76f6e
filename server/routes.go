package server

import (
	"net/http"

	"github.com/jrsteele09/campus-portal/session"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", ChainMiddleware(s.LandingHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware, s.LoginRateLimitMiddleware)...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware)...))

	// Protected pages
	s.RegisterRouteFunc("GET "+RouteProfile, ChainMiddleware(s.gate.RequireLogin(s.ProfileHandler()).ServeHTTP, s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteAdmin, ChainMiddleware(s.gate.RequireRole(session.RoleAdmin)(s.AdminHandler()).ServeHTTP, s.HTMLMiddleWare()...))

	// Session
	s.RegisterRouteFunc("GET "+RouteSessionStatus, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteSessionCheck, ChainMiddleware(s.SessionCheckHandler(), s.APIMiddleware(s.SameOriginMiddleware)...))

	// REST API proxy
	s.RegisterRouteFunc(RouteAPI, ChainMiddleware(s.apiProxy.ServeHTTP, s.APIMiddleware(s.SameOriginMiddleware)...))
}

var _ http.Handler = (*Server)(nil)
