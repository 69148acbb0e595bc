// Package metrics names the panelctl telemetry series and records them through the
// global telemetry system. Every recorder is a no-op until metrics are initialised.
package metrics

import (
	"strconv"
	"time"

	"github.com/panelops/panelctl/internal/observability"
)

// Series names.
const (
	OperationsTotal        = "app_operations_total"
	ActiveConnections      = "app_active_connections"
	UpstreamResponsesTotal = "app_upstream_responses_total"
	HealthCheckTotal       = "app_health_check_total"
	HealthCheckDuration    = "app_health_check_duration_ms"
	ServerStartTime        = "app_server_start_time_seconds"

	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

func count(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, labels)
	}
}

func observe(name string, elapsed time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, elapsed, labels)
	}
}

func pick(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}

// RecordOperation counts a CLI operation such as login or a balance sync.
func RecordOperation(operation string, success bool) {
	count(OperationsTotal, map[string]string{
		"operation": operation,
		"status":    pick(success, "success", "failure"),
	})
}

// SetActiveConnections reports the number of requests the gateway is proxying.
func SetActiveConnections(n int64) {
	gauge(ActiveConnections, float64(n), nil)
}

// RecordUpstreamStatus counts a proxied panel response by status.
func RecordUpstreamStatus(status int) {
	count(UpstreamResponsesTotal, map[string]string{"status": strconv.Itoa(status)})
}

// RecordHealthCheck records one health check run.
func RecordHealthCheck(check string, healthy bool, elapsed time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  check,
		"status": pick(healthy, "healthy", "unhealthy"),
	})
	observe(HealthCheckDuration, elapsed, map[string]string{"check": check})
}

// SetServerStartTime records the gateway start as a Unix timestamp.
func SetServerStartTime(unix int64) {
	gauge(ServerStartTime, float64(unix), nil)
}

// RecordError counts an error response by code and HTTP status.
func RecordError(code string, status int) {
	count(ErrorsTotalName, map[string]string{"error_code": code, "http_status": strconv.Itoa(status)})
}

// RecordErrorByEndpoint counts an error response by route.
func RecordErrorByEndpoint(endpoint, code string) {
	count(ErrorsByEndpointName, map[string]string{"endpoint": endpoint, "error_code": code})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	count(PanicsTotalName, nil)
}
