package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/panelops/panelctl/internal/appid"
	"github.com/panelops/panelctl/internal/config"
	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/observability"
)

var (
	cfgFile string
	verbose bool
	baseURL string

	// App identity resolved by appid
	appIdentity *appidentity.Identity

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the loaded app identity (only valid after initConfig)
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "Back-office CLI and local gateway for an SMM panel",
	Long: `panelctl talks to the SMM panel admin API with a shared, self-refreshing session.

Log in once, then manage providers, catalog, tickets, users and payments from the
terminal, or run "serve" to expose the authenticated API on localhost.`,
	SilenceUsage: true,
}

// Execute runs the root command. Commands see a background context.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Disable global telemetry early so CLI runs never emit metrics to stdout.
	// serve initializes the real system.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		if identity.BinaryName != "" {
			rootCmd.Use = identity.BinaryName
		}
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/panelctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "panel API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringP("output-format", "o", "table", "output format: table, json, yaml, markdown")
	rootCmd.PersistentFlags().String("out", "", "write output to file instead of stdout")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires the config file flag, environment and CLI logger.
func initConfig() {
	identity, err := appid.Get(context.Background())
	if err != nil {
		ExitWithCodeStderr(exitConfigInvalid, "Failed to resolve app identity", err)
	}
	appIdentity = identity

	config.SetConfigFile(cfgFile)

	viper.SetEnvPrefix(strings.TrimSuffix(identity.EnvPrefix, "_"))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	level := "info"
	if cfg, err := config.Load(context.Background(), runtimeOverrides()); err == nil {
		level = cfg.Logging.Level
	} else if verbose {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}
	if err := observability.InitCLILogger(identity.BinaryName, level, verbose); err != nil {
		ExitWithCodeStderr(exitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if cfgFile != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

// runtimeOverrides turns global flags into the highest-precedence config layer.
func runtimeOverrides() map[string]any {
	if value := strings.TrimSpace(baseURL); value != "" {
		return config.Override("api.base_url", value)
	}
	return map[string]any{}
}

// loadConfig loads the layered configuration with flag overrides applied.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, runtimeOverrides())
	if err != nil {
		return nil, apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "load config: "+err.Error())
	}
	return cfg, nil
}
