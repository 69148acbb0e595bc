package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/session"
)

type stubSession struct {
	state session.State
}

func (s stubSession) State() session.State {
	return s.state
}

func TestUpstreamChecker(t *testing.T) {
	status := http.StatusUnauthorized
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer upstream.Close()

	checker := UpstreamChecker{URL: upstream.URL, Client: upstream.Client()}
	require.NoError(t, checker.CheckHealth(context.Background()))

	status = http.StatusBadGateway
	require.Error(t, checker.CheckHealth(context.Background()))

	unreachable := UpstreamChecker{URL: "http://127.0.0.1:1"}
	require.Error(t, unreachable.CheckHealth(context.Background()))
}

func TestSessionCheckerDegradesWithoutLogin(t *testing.T) {
	err := SessionChecker{Session: stubSession{}}.CheckHealth(context.Background())
	require.ErrorIs(t, err, ErrDegraded)

	err = SessionChecker{Session: stubSession{state: session.State{Authenticated: true}}}.CheckHealth(context.Background())
	require.NoError(t, err)
}

func TestHealthHandlerReportsDegradedSession(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", CheckerFunc(func(context.Context) error { return nil }))
	manager.RegisterChecker("session", SessionChecker{Session: stubSession{}})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "degraded", resp.Checks["session"])
	assert.Equal(t, "healthy", resp.Checks["store"])
}

func TestSessionHandler(t *testing.T) {
	h := SessionHandler(stubSession{state: session.State{Endpoint: "https://panel.example.test/api", Email: "ops@example.test", Authenticated: true}})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ops@example.test"`)
	assert.NotContains(t, rec.Body.String(), "token")

	rec = httptest.NewRecorder()
	SessionHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

}
