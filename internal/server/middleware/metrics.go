package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/observability"
)

// panelResources are the API collections that get their own endpoint label. Everything
// else under /api collapses into /api/other.
var panelResources = map[string]bool{
	"auth":       true,
	"categories": true,
	"orders":     true,
	"payments":   true,
	"providers":  true,
	"services":   true,
	"settings":   true,
	"tickets":    true,
	"users":      true,
}

var localRoutes = map[string]string{
	"/":               "/",
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/locale":         "/locale",
	"/metrics":        "/metrics",
	"/session":        "/session",
	"/version":        "/version",
}

// statusRecorder captures the status and body size written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer for proxy flushing.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// EndpointLabel maps a request to a bounded metric label. Gateway traffic is labelled by
// panel resource so IDs in paths never reach the label set.
func EndpointLabel(r *http.Request) string {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/api/*" {
			return pattern
		}
	}

	if rest, ok := strings.CutPrefix(path, "/api/"); ok {
		resource, _, _ := strings.Cut(rest, "/")
		if panelResources[resource] {
			return "/api/" + resource
		}
		return "/api/other"
	}
	if label, ok := localRoutes[path]; ok {
		return label
	}
	return "/unknown"
}

func errorClass(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

// RequestMetrics emits request counters, latency and sizes for every request and logs
// the outcome with the request ID.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry := observability.TelemetrySystem
		if telemetry == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := EndpointLabel(r)
		status := strconv.Itoa(rec.status)
		labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
		sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}

		_ = telemetry.Counter("http_requests_total", 1, labels)
		_ = telemetry.Histogram("http_request_duration_ms", elapsed, labels)
		_ = telemetry.Gauge("http_request_size_bytes", float64(max(r.ContentLength, 0)), sizeLabels)
		_ = telemetry.Gauge("http_response_size_bytes", float64(rec.bytes), sizeLabels)

		if rec.status >= http.StatusBadRequest {
			_ = telemetry.Counter("http_errors_total", 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorClass(rec.status),
			})
		}

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.Int64("response_size", rec.bytes),
				zap.String("requestID", GetRequestID(r.Context())))
		}
	})
}
