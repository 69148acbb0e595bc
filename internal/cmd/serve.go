package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/config"
	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/metrics"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server"
	"github.com/panelops/panelctl/internal/server/handlers"
	"github.com/panelops/panelctl/internal/store"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return apperrors.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API gateway",
	Long: `Serve the panel API on localhost with the saved session attached.

Requests to /api/* are forwarded to api.base_url through the request gate: expired
sessions are refreshed once and every waiting request is replayed. Second-factor
challenges are passed through to the caller.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload log level from config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := config.Load(ctx, serveOverrides(cmd))
		if err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "load config: "+err.Error())
		}

		if err := observability.InitServerLogger(observability.ServerLogOptions{
			Service:   identity.BinaryName,
			Level:     cfg.Logging.Level,
			Profile:   cfg.Logging.Profile,
			Namespace: namespace,
		}); err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, err.Error())
		}
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		rt, err := newRuntime(ctx, cfg, runtimeOptions{logger: logger})
		if err != nil {
			return err
		}

		gateway, err := server.NewGateway(cfg.API.BaseURL, rt.chain.Request, cfg.Server.MaxBodyBytes)
		if err != nil {
			_ = rt.Close()
			return err
		}

		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", handlers.CheckerFunc(rt.store.Ping))
		hm.RegisterChecker("session", handlers.SessionChecker{Session: rt.session})
		hm.RegisterChecker("upstream", handlers.UpstreamChecker{
			URL:    cfg.API.BaseURL,
			Client: &http.Client{Timeout: 3 * time.Second},
		}, handlers.ProbeAggregate, handlers.ProbeReady)
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{}, handlers.ProbeAggregate)
		}
		hm.SetGate(rt.chain.Request)
		handlers.SetAppIdentity(identity)
		handlers.SetUpstream(cfg.API.BaseURL)

		srv := server.New(cfg.Server, server.Dependencies{
			Gateway: gateway,
			Session: rt.session,
			Locale: &handlers.LocaleHandler{
				Source: rt.locale,
				Persist: func(ctx context.Context, value string) error {
					return rt.store.SetPreference(ctx, store.PreferenceLocale, value)
				},
			},
		})

		logger.Info("Initializing gateway",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("upstream", cfg.API.BaseURL),
			zap.String("locale", rt.locale.Current()),
			zap.Bool("logged_in", rt.session.State().Authenticated),
			zap.String("addr", srv.Addr()),
			zap.Int("metrics_port", observability.GetMetricsPort()))
		if !rt.session.State().Authenticated {
			logger.Warn("No saved session; /api requests will be rejected by the panel until you run login")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: server first, then runtime, then logger flush.
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				logger.Warn("Metrics exporter shutdown failed", zap.Error(err))
			}
			if err := rt.Close(); err != nil {
				logger.Warn("Runtime close failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: reloading configuration")
			reloaded, err := config.Load(ctx, serveOverrides(cmd))
			if err != nil {
				logger.Error("Failed to reload config", zap.Error(err))
				return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "config reload failed")
			}
			logger.Info("Configuration reloaded",
				zap.String("log_level", reloaded.Logging.Level),
				zap.Float64("rate_limit", reloaded.Server.RateLimit))
			if reloaded.Logging.Level != cfg.Logging.Level {
				logger.Warn("Log level changes take effect after restart")
			}
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeInternal, err, "server error: "+err.Error())
		}
		return nil
	},
}

// serveOverrides layers --host/--port over the global flag overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := runtimeOverrides()
	server := map[string]any{}
	if cmd.Flags().Changed("host") {
		server["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		server["port"] = serverPort
	}
	if len(server) > 0 {
		overrides["server"] = server
	}
	return overrides
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
