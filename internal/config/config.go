package config

import (
	"time"
)

// Config is the complete panelctl configuration.
//
// Layers, lowest precedence first:
// Layer 1: built-in defaults (Defaults)
// Layer 2: user config file (~/.config/panelctl/config.yaml or --config)
// Layer 3: PANELCTL_* environment variables and runtime overrides
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Gate    GateConfig    `mapstructure:"gate"`
	Locale  LocaleConfig  `mapstructure:"locale"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// APIConfig describes the remote panel API.
type APIConfig struct {
	// BaseURL is the API endpoint every relative request is joined onto.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	LoginPath   string `mapstructure:"login_path"`
	RefreshPath string `mapstructure:"refresh_path"`
	LogoutPath  string `mapstructure:"logout_path"`
	ProfilePath string `mapstructure:"profile_path"`

	UserAgent string `mapstructure:"user_agent"`
}

// GateConfig tunes the request gate.
type GateConfig struct {
	// RefreshTimeout bounds the shared session refresh. Negative disables the bound.
	RefreshTimeout      time.Duration `mapstructure:"refresh_timeout"`
	ChallengeHeader     string        `mapstructure:"challenge_header"`
	ChallengeCodeHeader string        `mapstructure:"challenge_code_header"`
}

// LocaleConfig selects the Accept-Language sent to the API.
type LocaleConfig struct {
	Default   string   `mapstructure:"default"`
	Supported []string `mapstructure:"supported"`
}

// ServerConfig contains the local gateway server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit caps gateway requests per second. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
	// MaxBodyBytes bounds request bodies buffered for replay after a refresh.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig controls the on-disk catalog cache (categories, services).
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level (simple, structured)
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
