package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/config"
	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/gate"
	"github.com/panelops/panelctl/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that panelctl can start",
	Long: `Check that the binary carries version metadata, the configuration loads and a
request gate can be built from it. No request is sent to the panel.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := observability.CLILogger

		if versionInfo.Version == "" {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, errors.New("empty version"), "version information missing")
		}
		log.Info("✅ Version " + versionInfo.Version)

		cfg, err := config.Load(ctx, runtimeOverrides())
		if err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "configuration invalid: "+err.Error())
		}
		log.Info("✅ Configuration loaded", zap.String("base_url", valueOrUnset(cfg.API.BaseURL)))

		if err := probeGate(cfg); err != nil {
			return apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "request gate cannot be built: "+err.Error())
		}
		log.Info("✅ Request gate ready", zap.Duration("refresh_timeout", cfg.Gate.RefreshTimeout))
		return nil
	},
}

// probeGate builds and discards a gate chain with a refresher that never runs.
func probeGate(cfg *config.Config) error {
	chain, err := gate.NewChain(nil, gate.Options{
		BaseURL:        cfg.API.BaseURL,
		RefreshTimeout: cfg.Gate.RefreshTimeout,
		Refresher: gate.RefresherFunc(func(context.Context) (gate.RefreshResult, error) {
			return gate.RefreshResult{}, nil
		}),
	}, gate.ChallengeOptions{
		Header:     cfg.Gate.ChallengeHeader,
		CodeHeader: cfg.Gate.ChallengeCodeHeader,
	})
	if err != nil {
		return err
	}
	return chain.Close()
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
