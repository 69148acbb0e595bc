package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/config"
	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server/handlers"
	servermw "github.com/panelops/panelctl/internal/server/middleware"
)

// Dependencies are the panel-facing pieces mounted by the server. Nil fields leave the
// corresponding routes unregistered.
type Dependencies struct {
	Gateway http.Handler
	Locale  *handlers.LocaleHandler
	Session handlers.SessionStater
}

// Server is the local gateway in front of the panel API.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Dependencies
}

// New wires middleware and routes. Request IDs are assigned first so every later layer
// and the upstream request share one correlation ID.
func New(cfg config.ServerConfig, deps Dependencies) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, servermw.RequestID, servermw.RequestMetrics, servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("no route for "+req.Method+" "+req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError(req.Method+" is not allowed on "+req.URL.Path))
	})

	s := &Server{router: r, cfg: cfg, deps: deps}
	s.registerRoutes()
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start listens on Addr and blocks until the server stops.
func (s *Server) Start() error {
	addr := s.Addr()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(s.cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:  orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", addr),
			zap.Bool("gateway", s.deps.Gateway != nil),
			zap.Float64("rate_limit", s.cfg.RateLimit))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
