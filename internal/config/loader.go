// Package config provides centralized configuration management for panelctl.
// It implements the three-layer config pattern:
// Layer 1: built-in defaults (Defaults)
// Layer 2: user overrides (XDG config paths discovered via app identity, or an explicit file)
// Layer 3: environment variables and runtime overrides
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/panelops/panelctl/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig    *Config
	configMu     sync.RWMutex
	explicitPath string
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// SetConfigFile pins the user config layer to path instead of XDG discovery.
// An empty path restores discovery.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	explicitPath = strings.TrimSpace(path)
}

// Load loads configuration using the three-layer pattern.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	identity, err := appid.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load app identity: %w", err)
	}

	merged := Defaults()

	user, err := loadUserFile(identity)
	if err != nil {
		return nil, err
	}
	mergeInto(merged, user)

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	mergeInto(merged, envOverrides)

	for _, override := range runtimeOverrides {
		mergeInto(merged, override)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = storePath(identity)
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = cachePath(identity)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if raw := strings.TrimSpace(c.API.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("api.base_url: unsupported scheme %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("api.base_url: missing host")
		}
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if strings.TrimSpace(c.Gate.ChallengeHeader) == "" || strings.TrimSpace(c.Gate.ChallengeCodeHeader) == "" {
		return errors.New("gate challenge headers must not be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must not be negative")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// Override builds a nested runtime override from a dotted key ("api.base_url").
func Override(key string, value any) map[string]any {
	parts := strings.Split(key, ".")
	root := map[string]any{}
	node := root
	for _, part := range parts[:len(parts)-1] {
		next := map[string]any{}
		node[part] = next
		node = next
	}
	node[parts[len(parts)-1]] = value
	return root
}

func loadUserFile(identity *appidentity.Identity) (map[string]any, error) {
	configMu.RLock()
	path := explicitPath
	configMu.RUnlock()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return decodeYAML(path, data)
	}

	for _, candidate := range candidateFiles(getUserConfigPaths(identity)) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", candidate, err)
		}
		return decodeYAML(candidate, data)
	}
	return map[string]any{}, nil
}

func decodeYAML(path string, data []byte) (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return out, nil
}

// candidateFiles expands discovered config locations into concrete file names.
func candidateFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			out = append(out, p)
		default:
			out = append(out, filepath.Join(p, "config.yaml"), filepath.Join(p, "config.yml"))
		}
	}
	return out
}

// mergeInto deep-merges src into dst; maps merge key by key, everything else replaces.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := map[string]any{}
			mergeInto(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths(identity *appidentity.Identity) []string {
	configName, binaryName := appNames(identity)
	legacyNames := []string{}
	if binaryName != configName {
		legacyNames = append(legacyNames, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacyNames...)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs(identity *appidentity.Identity) []EnvVarSpec {
	prefix := appid.EnvPrefix
	if identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Panel API
		{Name: prefix + "API_BASE_URL", Path: []string{"api", "base_url"}, Type: EnvString},
		{Name: prefix + "API_TIMEOUT", Path: []string{"api", "timeout"}, Type: EnvString},
		{Name: prefix + "API_LOGIN_PATH", Path: []string{"api", "login_path"}, Type: EnvString},
		{Name: prefix + "API_REFRESH_PATH", Path: []string{"api", "refresh_path"}, Type: EnvString},
		{Name: prefix + "API_LOGOUT_PATH", Path: []string{"api", "logout_path"}, Type: EnvString},
		{Name: prefix + "API_PROFILE_PATH", Path: []string{"api", "profile_path"}, Type: EnvString},
		{Name: prefix + "API_USER_AGENT", Path: []string{"api", "user_agent"}, Type: EnvString},

		// Gate
		{Name: prefix + "GATE_REFRESH_TIMEOUT", Path: []string{"gate", "refresh_timeout"}, Type: EnvString},
		{Name: prefix + "GATE_CHALLENGE_HEADER", Path: []string{"gate", "challenge_header"}, Type: EnvString},
		{Name: prefix + "GATE_CHALLENGE_CODE_HEADER", Path: []string{"gate", "challenge_code_header"}, Type: EnvString},

		// Locale
		{Name: prefix + "LOCALE", Path: []string{"locale", "default"}, Type: EnvString},
		{Name: prefix + "LOCALE_SUPPORTED", Path: []string{"locale", "supported"}, Type: EnvString},

		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},
		{Name: prefix + "RATE_LIMIT", Path: []string{"server", "rate_limit"}, Type: EnvString},
		{Name: prefix + "RATE_BURST", Path: []string{"server", "rate_burst"}, Type: EnvInt},

		// Catalog cache
		{Name: prefix + "CACHE_ENABLED", Path: []string{"cache", "enabled"}, Type: EnvBool},
		{Name: prefix + "CACHE_PATH", Path: []string{"cache", "path"}, Type: EnvString},
		{Name: prefix + "CACHE_TTL", Path: []string{"cache", "ttl"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
	}
}

// appNames returns the config name and binary name from app identity,
// falling back to "panelctl" if not set.
func appNames(identity *appidentity.Identity) (configName string, binaryName string) {
	configName = appid.ConfigName
	binaryName = appid.BinaryName
	if identity == nil {
		return configName, binaryName
	}
	if strings.TrimSpace(identity.ConfigName) != "" {
		configName = identity.ConfigName
	}
	if strings.TrimSpace(identity.BinaryName) != "" {
		binaryName = identity.BinaryName
	}
	return configName, binaryName
}

func currentIdentity() *appidentity.Identity {
	identity, err := appid.Get(context.Background())
	if err != nil {
		return nil
	}
	return identity
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNames(currentIdentity())
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	return storePath(currentIdentity())
}

func storePath(identity *appidentity.Identity) string {
	configName, binaryName := appNames(identity)
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	return cachePath(currentIdentity())
}

func cachePath(identity *appidentity.Identity) string {
	configName, binaryName := appNames(identity)
	dir := gfconfig.GetAppCacheDir(configName)
	if strings.TrimSpace(dir) == "" {
		return "./." + binaryName + "-cache"
	}
	return filepath.Join(dir, "catalog")
}
