package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/panelops/panelctl/internal/config"
	"github.com/panelops/panelctl/internal/observability"
)

func TestRunDoctorSharesEnvBetweenChecks(t *testing.T) {
	checks := []doctorCheck{
		{"first", func(env *doctorEnv) (string, string) {
			env.appName = "seen"
			return checkOK, "one"
		}},
		{"second", func(env *doctorEnv) (string, string) {
			return checkWarn, env.appName
		}},
	}

	results := runDoctor(&doctorEnv{ctx: context.Background()}, checks)
	assert.Equal(t, []checkResult{
		{Name: "first", Status: checkOK, Detail: "one"},
		{Name: "second", Status: checkWarn, Detail: "seen"},
	}, results)
}

func TestDoctorViewFooter(t *testing.T) {
	view := doctorView("panelctl", []checkResult{{Name: "database", Status: checkOK, Detail: "ok"}})
	assert.Equal(t, "all checks passed", view.Footer)
	assert.Equal(t, []string{"1", "database", checkOK, "ok"}, view.Rows[0])

	view = doctorView("panelctl", []checkResult{
		{Name: "database", Status: checkOK},
		{Name: "session", Status: checkWarn},
	})
	assert.Equal(t, "review failed checks above", view.Footer)
}

func TestDependentChecksSkipWithoutConfig(t *testing.T) {
	env := &doctorEnv{ctx: context.Background()}

	status, _ := checkDatabase(env)
	assert.Equal(t, checkSkip, status)
	status, _ = checkSession(env)
	assert.Equal(t, checkSkip, status)
	status, _ = checkCache(env)
	assert.Equal(t, checkSkip, status)
	status, _ = checkPanel(env)
	assert.Equal(t, checkSkip, status)
}

func TestCheckCache(t *testing.T) {
	dir := t.TempDir()
	env := &doctorEnv{cfg: &config.Config{Cache: config.CacheConfig{Enabled: true, Path: dir}}}
	status, detail := checkCache(env)
	assert.Equal(t, checkOK, status)
	assert.Equal(t, dir, detail)

	env.cfg.Cache.Path = dir + "/later"
	status, detail = checkCache(env)
	assert.Equal(t, checkOK, status)
	assert.Contains(t, detail, "not created yet")

	env.cfg.Cache.Enabled = false
	_, detail = checkCache(env)
	assert.Equal(t, "disabled", detail)
}

func TestByteSize(t *testing.T) {
	assert.Equal(t, "512 bytes", byteSize(512))
	assert.Equal(t, "1.5 KB", byteSize(1536))
	assert.Equal(t, "5.0 MB", byteSize(5<<20))
	assert.Equal(t, "2.0 GB", byteSize(2<<30))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "unknown", timeAgo(0, true))
	assert.Equal(t, "just now", timeAgo(10*time.Second, false))
	assert.Equal(t, "1 min ago", timeAgo(time.Minute, false))
	assert.Equal(t, "3 hours ago", timeAgo(3*time.Hour, false))
	assert.Equal(t, "2 days ago", timeAgo(49*time.Hour, false))
}

func TestBuildInitConfigPassesSchema(t *testing.T) {
	body, err := buildInitConfig("https://panel.example.test/api/v1", "ru")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(body), &doc))
	assert.Equal(t, "https://panel.example.test/api/v1", doc["api"].(map[string]any)["base_url"])
	assert.Equal(t, "ru", doc["locale"].(map[string]any)["default"])

	problems, err := config.ValidateDocument("init.yaml", []byte(body))
	require.NoError(t, err)
	assert.Empty(t, problems)

	body, err = buildInitConfig("https://panel.example.test/api/v1", "")
	require.NoError(t, err)
	assert.NotContains(t, body, "locale:")
}

func TestDescribeStoreHidesCredentials(t *testing.T) {
	desc := describeStore(config.StoreConfig{URL: "libsql://db.example.test?authToken=secret", AuthToken: "other"})
	assert.Equal(t, "libsql://db.example.test (remote)", desc)
	assert.NotContains(t, desc, "secret")

	path := t.TempDir() + "/missing.db"
	assert.Equal(t, path, describeStore(config.StoreConfig{Path: "file:" + path}))
}

func TestRemovePath(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("panelctl-test", "error", false))

	path := filepath.Join(t.TempDir(), "panelctl.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, removePath("database", path, os.Remove))
	assert.NoFileExists(t, path)
	require.NoError(t, removePath("database", path, os.Remove), "missing files are not an error")
	require.NoError(t, removePath("config", "", os.Remove))

	failing := func(string) error { return errors.New("busy") }
	assert.ErrorContains(t, removePath("cache", path, failing), "remove cache: busy")
}
