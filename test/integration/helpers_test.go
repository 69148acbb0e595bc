package integration

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/config"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server"
)

// sandboxDenied reports loopback bind failures from restricted sandboxes.
func sandboxDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func initLoggers(t *testing.T) {
	t.Helper()
	require.NoError(t, observability.InitCLILogger("test", "info", false))
	require.NoError(t, observability.InitServerLogger(observability.ServerLogOptions{Service: "test", Level: "warn"}))
	t.Cleanup(func() { observability.ServerLogger = nil })
}

// startMetrics starts a real exporter on a free port and tears it down after the test.
func startMetrics(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if sandboxDenied(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.ShutdownMetrics() })
}

// newTestServer serves the gateway router on IPv4 loopback. setup may add extra routes.
func newTestServer(t *testing.T, deps server.Dependencies, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := server.New(config.ServerConfig{Host: "127.0.0.1"}, deps)
	if mux, ok := srv.Handler().(*chi.Mux); ok && setup != nil {
		setup(mux)
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if sandboxDenied(err) {
			t.Skipf("loopback listener denied: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}
