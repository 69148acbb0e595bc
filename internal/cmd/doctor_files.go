package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/panelops/panelctl/internal/config"
	"github.com/panelops/panelctl/internal/observability"
	"github.com/panelops/panelctl/internal/store"
)

var (
	doctorInitForce   bool
	doctorInitBaseURL string
	doctorInitLocale  string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		endpoint := strings.TrimSpace(doctorInitBaseURL)
		if endpoint == "" {
			return fmt.Errorf("--base-url is required")
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		body, err := buildInitConfig(endpoint, doctorInitLocale)
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := observability.CLILogger
		configPath := config.DefaultConfigPath()
		cacheDir := config.DefaultCacheDir()

		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Config file:     %s (%s)", configPath, existenceStatus(fileExists(configPath))))
		if cacheDir != "" {
			log.Info(fmt.Sprintf("  Cache directory: %s (%s)", cacheDir, existenceStatus(fileExists(cacheDir))))
		} else {
			log.Info("  Cache directory: (not resolved)")
		}

		cfg, err := config.Load(cmd.Context(), runtimeOverrides())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return nil
		}
		log.Info("  Database:        " + describeStore(cfg.Store))

		identity := GetAppIdentity()
		log.Info("")
		log.Info("Environment:")
		for _, suffix := range []string{"BASE_URL", "LOG_LEVEL", "RATE_LIMIT"} {
			name := identity.EnvPrefix + suffix
			log.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}

		log.Info("")
		log.Info("Effective Settings:")
		log.Info("  api.base_url: " + valueOrUnset(cfg.API.BaseURL))
		log.Info("  locale.default: " + cfg.Locale.Default)
		log.Info("  gate.refresh_timeout: " + cfg.Gate.RefreshTimeout.String())
		log.Info(fmt.Sprintf("  cache.enabled: %t", cfg.Cache.Enabled))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the config file, local data, or both",
	RunE: func(cmd *cobra.Command, args []string) error {
		wipeConfig := doctorResetConfig || doctorResetAll
		wipeData := doctorResetData || doctorResetAll
		if !wipeConfig && !wipeData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if wipeConfig {
			if err := removePath("config", config.DefaultConfigPath(), os.Remove); err != nil {
				return err
			}
		}
		if !wipeData {
			return nil
		}

		cfg, err := config.Load(cmd.Context(), runtimeOverrides())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		storeCfg := cfg.Store
		if storeCfg.URL == "" && storeCfg.Path == "" {
			storeCfg.Path = config.DefaultStorePath()
		}
		loc, err := store.ResolveLocation(storeCfg)
		if err != nil {
			return err
		}
		if loc.Remote {
			return fmt.Errorf("remote store %s configured; database reset is not supported", loc)
		}
		if loc.Path != "" {
			for _, suffix := range []string{"", "-wal", "-shm"} {
				if err := removePath("database", loc.Path+suffix, os.Remove); err != nil {
					return err
				}
			}
		}
		return removePath("cache", cfg.Cache.Path, os.RemoveAll)
	},
}

// removePath deletes path with remove and logs the outcome; an unresolved path is skipped.
func removePath(label, path string, remove func(string) error) error {
	log := observability.CLILogger
	if path == "" {
		log.Warn("Path not resolved; skipping", zap.String("target", label))
		return nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	err := remove(path)
	switch {
	case err == nil:
		log.Info("Removed", zap.String("target", label), zap.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("Already absent", zap.String("target", label), zap.String("path", path))
	default:
		return fmt.Errorf("remove %s: %w", label, err)
	}
	return nil
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file: %w", err)
		}

		problems, err := config.ValidateFile(configPath)
		if err != nil {
			return err
		}
		for _, problem := range problems {
			observability.CLILogger.Warn("Schema violation", zap.String("path", configPath), zap.String("problem", problem))
		}
		if len(problems) > 0 {
			return fmt.Errorf("config file %s has %d schema violation(s)", configPath, len(problems))
		}

		if _, err := config.Load(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "exit non-zero when any check fails")

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitBaseURL, "base-url", "", "panel API endpoint, e.g. https://panel.example.com/api/v1")
	doctorInitCmd.Flags().StringVar(&doctorInitLocale, "locale", "", "default Accept-Language")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database and cache")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

type initFile struct {
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Gate struct {
		RefreshTimeout string `yaml:"refresh_timeout"`
	} `yaml:"gate"`
	Locale *struct {
		Default string `yaml:"default"`
	} `yaml:"locale,omitempty"`
	Server struct {
		Port      int     `yaml:"port"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"server"`
}

// buildInitConfig renders the starter config written by doctor init.
func buildInitConfig(baseURL, defaultLocale string) (string, error) {
	var f initFile
	f.API.BaseURL = baseURL
	f.Gate.RefreshTimeout = "30s"
	if value := strings.TrimSpace(defaultLocale); value != "" {
		f.Locale = &struct {
			Default string `yaml:"default"`
		}{Default: value}
	}
	f.Server.Port = 8080
	f.Server.RateLimit = 20

	body, err := yaml.Marshal(&f)
	if err != nil {
		return "", err
	}
	return "# panelctl config - created by 'panelctl doctor init'\n" + string(body), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
