// Package config defines process configuration and its loading.
//
// Precedence (low -> high): defaults, optional YAML file named by
// LEAGUEVAULT_CONFIG, then LEAGUEVAULT_-prefixed environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config contains process configuration.
type Config struct {
	// DatabasePath is the SQLite warehouse file.
	DatabasePath string `koanf:"db_path"`

	// ApplyTimeoutSec bounds one batch's Applying+Verifying phases.
	ApplyTimeoutSec int `koanf:"apply_timeout_sec"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		DatabasePath:    "leaguevault.db",
		ApplyTimeoutSec: 300,
		LogLevel:        "info",
	}
}

// ApplyTimeout returns the apply deadline as a duration.
func (c *Config) ApplyTimeout() time.Duration {
	return time.Duration(c.ApplyTimeoutSec) * time.Second
}

// Load builds a Config by layering defaults, optional file, and env.
//
// Environment keys map flat: LEAGUEVAULT_DB_PATH -> db_path,
// LEAGUEVAULT_APPLY_TIMEOUT_SEC -> apply_timeout_sec.
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("LEAGUEVAULT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.Provider("LEAGUEVAULT_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "leaguevault_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("db_path must not be empty")
	}
	if cfg.ApplyTimeoutSec <= 0 {
		return nil, errors.New("apply_timeout_sec must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("log_level must be one of debug, info, warn, error")
	}
	return &cfg, nil
}
