package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/appid"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server/handlers"
	servermw "github.com/panelops/panelctl/internal/server/middleware"
)

const adminSignalPath = "/admin/signal"

func (s *Server) registerRoutes() {
	r := s.router

	r.Route("/health", func(r chi.Router) {
		r.Get("/", handlers.HealthHandler)
		r.Get("/live", handlers.LivenessHandler)
		r.Get("/ready", handlers.ReadinessHandler)
		r.Get("/startup", handlers.StartupHandler)
	})
	r.Get("/version", handlers.VersionHandler)
	r.Get("/metrics", MetricsHandler)

	if s.deps.Session != nil {
		r.Get("/session", handlers.SessionHandler(s.deps.Session))
	}
	if s.deps.Locale != nil {
		r.Get("/locale", s.deps.Locale.Get)
		r.Put("/locale", s.deps.Locale.Put)
	}

	// Only proxied traffic is rate limited; probes must keep answering under load.
	if s.deps.Gateway != nil {
		r.With(servermw.RateLimit(s.cfg.RateLimit, s.cfg.RateBurst)).
			Handle("/api/*", http.StripPrefix("/api", s.deps.Gateway))
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes gofulmen's signal handler when <PREFIX>ADMIN_TOKEN is set.
func (s *Server) registerAdminEndpoint() {
	prefix := appid.EnvPrefix
	if identity, _ := appid.Get(context.Background()); identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	token := os.Getenv(prefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if token == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled", zap.String("env", prefix+"ADMIN_TOKEN"))
		}
		return
	}

	s.router.Post(adminSignalPath, signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: 10,
		RateBurst: 5,
	}).ServeHTTP)

	if logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep the gateway off public networks",
			zap.String("path", adminSignalPath))
	}
}
