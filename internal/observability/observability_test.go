package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/observability"
)

func TestCLILogger(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("panelctl-test", "warn", false))
	require.NotNil(t, observability.CLILogger)
	observability.CLILogger.Info("suppressed below warn", zap.String("test", "value"))

	require.NoError(t, observability.InitCLILogger("panelctl-test", "error", true))
	observability.CLILogger.Debug("verbose wins over level", zap.Bool("verbose", true))
}

func TestServerLoggerProfiles(t *testing.T) {
	t.Cleanup(func() { observability.ServerLogger = nil })
	require.NoError(t, observability.InitCLILogger("panelctl-test", "info", false))

	observability.ServerLogger = nil
	assert.Same(t, observability.CLILogger, observability.Logger())

	for _, profile := range []string{"", observability.ProfileStructured, observability.ProfileSimple} {
		require.NoError(t, observability.InitServerLogger(observability.ServerLogOptions{
			Service:   "panelctl-test",
			Level:     "debug",
			Profile:   profile,
			Namespace: "panelctl",
		}), profile)
		require.NotNil(t, observability.ServerLogger)
		assert.Same(t, observability.ServerLogger, observability.Logger())
		observability.ServerLogger.Info("gateway message", zap.String("profile", profile))
	}

	err := observability.InitServerLogger(observability.ServerLogOptions{Service: "panelctl-test", Profile: "verbose"})
	assert.ErrorContains(t, err, "unknown logging profile")
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}

func TestMetricsURLBeforeInit(t *testing.T) {
	require.NoError(t, observability.ShutdownMetrics())
	assert.Zero(t, observability.GetMetricsPort())
	assert.Equal(t, "http://127.0.0.1:9090/metrics", observability.MetricsURL())
}
