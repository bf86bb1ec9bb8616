package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides holds values read from ATLASCOPE_* environment variables.
type EnvOverrides struct {
	ConfigPath      string `env:"ATLASCOPE_CONFIG"`
	DBPath          string `env:"ATLASCOPE_DB_PATH"`
	AppName         string `env:"ATLASCOPE_APP_NAME"`
	DevMode         *bool  `env:"ATLASCOPE_DEV_MODE"`
	LogLevel        string `env:"ATLASCOPE_LOG_LEVEL"`
	ValidationMode  string `env:"ATLASCOPE_VALIDATION_MODE"`
	ArticlesBaseURL string `env:"ATLASCOPE_ARTICLES_BASE_URL"`
}

// ParseEnv loads overrides from the process environment.
func ParseEnv() (EnvOverrides, error) {
	var out EnvOverrides
	if err := env.Parse(&out); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	out.ConfigPath = strings.TrimSpace(out.ConfigPath)
	out.DBPath = strings.TrimSpace(out.DBPath)
	out.AppName = strings.TrimSpace(out.AppName)
	return out, nil
}

// Apply layers non-empty overrides onto cfg.
func (e EnvOverrides) Apply(cfg Config) Config {
	if e.DBPath != "" {
		cfg.Database.Path = e.DBPath
	}
	if level := strings.TrimSpace(e.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if mode := strings.TrimSpace(e.ValidationMode); mode != "" {
		cfg.Validation.Mode = mode
	}
	if base := strings.TrimSpace(e.ArticlesBaseURL); base != "" {
		cfg.Articles.BaseURL = base
	}
	return cfg
}
