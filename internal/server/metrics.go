package server

import (
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

var scrapeClient = &http.Client{Timeout: 5 * time.Second}

// MetricsHandler serves /metrics on the gateway port by scraping the exporter's own
// listener, so operators only need to reach one port.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		HandleError(w, r, errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, "metrics are disabled"))
		return
	}

	target := observability.MetricsURL()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err == nil && r.Header.Get("Accept") != "" {
		req.Header.Set("Accept", r.Header.Get("Accept"))
	}
	var resp *http.Response
	if err == nil {
		resp, err = scrapeClient.Do(req)
	}
	if err != nil {
		envelope, _ := errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, "metrics exporter unreachable").
			WithContext(map[string]interface{}{"metrics_url": target, "original_error": err.Error()})
		HandleError(w, r, envelope)
		return
	}
	defer resp.Body.Close() // nolint:errcheck // read-only body

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = prometheusContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		if logger := observability.ServerLogger; logger != nil {
			logger.Warn("Failed to relay metrics", zap.Error(err))
		}
	}
}
