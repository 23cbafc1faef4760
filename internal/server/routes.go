package server

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/domain"
	"github.com/nfrund/evmarket/internal/handlers"
	"github.com/nfrund/evmarket/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterRoutes sets up the server-owned routes and returns the
// authenticated group that modules mount their routes on.
func (s *Server) RegisterRoutes() *echo.Group {
	healthHandler := handlers.NewHealthHandler(s.db)
	presenceHandler := handlers.NewPresenceHandler(s.presence)

	s.E.GET("/health", healthHandler.HealthGet)
	s.E.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{s.metrics, prometheus.DefaultGatherer},
	}))

	authMiddleware := middleware.Auth(s.JWT())
	roleMiddleware := middleware.RequireRole(domain.RoleMember, domain.RoleAdmin)

	// Hub endpoint (the upgrade carries the token as a query parameter)
	s.E.GET("/hub/chat", s.bridge.Handler(), authMiddleware, roleMiddleware)

	api := s.E.Group("", authMiddleware, roleMiddleware)
	api.GET("/presence", presenceHandler.GetPresence)
	api.GET("/presence/:userId", presenceHandler.GetUserPresence)
	return api
}
