package config

import "github.com/panelops/panelctl/internal/locale"

// Defaults returns the built-in configuration layer as a nested map.
func Defaults() map[string]any {
	return map[string]any{
		"api": map[string]any{
			"base_url":     "",
			"timeout":      "30s",
			"login_path":   "/auth/login",
			"refresh_path": "/auth/refresh",
			"logout_path":  "/auth/logout",
			"profile_path": "/auth/me",
			"user_agent":   "panelctl",
		},
		"gate": map[string]any{
			"refresh_timeout":       "30s",
			"challenge_header":      "X-2FA-Required",
			"challenge_code_header": "X-2FA-Code",
		},
		"locale": map[string]any{
			"default":   locale.DefaultLocale,
			"supported": []any{},
		},
		"server": map[string]any{
			"host":             "localhost",
			"port":             8080,
			"read_timeout":     "30s",
			"write_timeout":    "60s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "10s",
			"rate_limit":       20,
			"rate_burst":       40,
			"max_body_bytes":   10 << 20,
		},
		"store": map[string]any{
			"driver":     "libsql",
			"path":       "",
			"url":        "",
			"auth_token": "",
		},
		"cache": map[string]any{
			"enabled": true,
			"path":    "",
			"ttl":     "10m",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "structured",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    0,
		},
		"health": map[string]any{
			"enabled": true,
		},
		"debug": map[string]any{
			"enabled": false,
		},
	}
}
