package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/appid"
)

func getVersion(t *testing.T) VersionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionHandlerReportsBuildAndUpstream(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-01-07T12:00:00Z")
	SetAppIdentity(nil)
	SetUpstream("https://panel.example.test/api/v1?token=secret")
	t.Cleanup(func() { SetUpstream("") })

	resp := getVersion(t)
	assert.Equal(t, appid.BinaryName, resp.Name)
	assert.Equal(t, Build{Version: "1.2.3", Commit: "abcd123", Date: "2026-01-07T12:00:00Z"}, resp.Build)
	assert.Equal(t, "https://panel.example.test", resp.Upstream)
	assert.NotEmpty(t, resp.Gofulmen)
	assert.NotEmpty(t, resp.Crucible)
}

func TestVersionHandlerPrefersIdentityName(t *testing.T) {
	SetAppIdentity(&appidentity.Identity{BinaryName: "panelctl-staging"})
	t.Cleanup(func() { SetAppIdentity(nil) })

	assert.Equal(t, "panelctl-staging", getVersion(t).Name)
}

func TestSetUpstreamIgnoresUnparseable(t *testing.T) {
	SetUpstream("not a url")
	assert.Empty(t, getVersion(t).Upstream)
}
