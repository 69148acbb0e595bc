package integration

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/server"
	"github.com/panelops/panelctl/internal/server/handlers"
)

func scrape(t *testing.T, client *http.Client, baseURL string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	return resp, string(body)
}

func TestMetrics_GatewayTrafficIsLabelledByResource(t *testing.T) {
	initLoggers(t)
	startMetrics(t)

	_, ts, _ := newGatewayStack(t, "r1")
	client := ts.Client()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/api/tickets"
			if i%2 == 1 {
				path = "/health/live"
			}
			resp, err := client.Get(ts.URL + path)
			if err == nil {
				_ = resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	resp, body := scrape(t, client, ts.URL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "test_http_requests_total")
	assert.Contains(t, body, "test_http_request_duration_ms")
	assert.Contains(t, body, "/api/tickets")
	assert.NotContains(t, body, "/api/tickets/")
}

func TestMetrics_PrometheusFormat(t *testing.T) {
	initLoggers(t)
	startMetrics(t)
	handlers.InitHealthManager("test")

	ts, client := newTestServer(t, server.Dependencies{}, nil)
	resp, err := client.Get(ts.URL + "/version")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	resp, body := scrape(t, client, ts.URL)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain; version=0.0.4"),
		"unexpected content type %q", resp.Header.Get("Content-Type"))

	samples := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, "{") && len(strings.Fields(line)) >= 2 {
			samples++
		}
	}
	assert.Greater(t, samples, 0, "expected labelled samples in exposition output")
}

func TestMetrics_DisabledReturns503(t *testing.T) {
	initLoggers(t)
	require.NoError(t, observability.ShutdownMetrics())
	handlers.InitHealthManager("test")

	ts, client := newTestServer(t, server.Dependencies{}, nil)
	resp, _ := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
