package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides mirrors the config fields that can be set from the
// environment. Pointers distinguish "unset" from zero values.
type envOverrides struct {
	StateDir       *string `env:"HOOKD_STATE_DIR"`
	LogDir         *string `env:"HOOKD_LOG_DIR"`
	SocketPath     *string `env:"HOOKD_SOCKET"`
	IdleTimeout    *int    `env:"HOOKD_IDLE_TIMEOUT_SECONDS"`
	RequestTimeout *int    `env:"HOOKD_REQUEST_TIMEOUT_SECONDS"`
	Exclusive      *bool   `env:"HOOKD_EXCLUSIVE"`
	LogLevel       *string `env:"HOOKD_LOG_LEVEL"`
	LogFormat      *string `env:"HOOKD_LOG_FORMAT"`
	AuditEnabled   *bool   `env:"HOOKD_AUDIT_ENABLED"`
}

func applyEnvOverrides(cfg *Config) error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}

	if overrides.StateDir != nil {
		cfg.Paths.StateDir = *overrides.StateDir
	}
	if overrides.LogDir != nil {
		cfg.Paths.LogDir = *overrides.LogDir
	}
	if overrides.SocketPath != nil {
		cfg.Daemon.SocketPath = *overrides.SocketPath
	}
	if overrides.IdleTimeout != nil {
		cfg.Daemon.IdleTimeoutSeconds = *overrides.IdleTimeout
	}
	if overrides.RequestTimeout != nil {
		cfg.Daemon.RequestTimeoutSeconds = *overrides.RequestTimeout
	}
	if overrides.Exclusive != nil {
		cfg.Daemon.Exclusive = *overrides.Exclusive
	}
	if overrides.LogLevel != nil {
		cfg.Logging.Level = *overrides.LogLevel
	}
	if overrides.LogFormat != nil {
		cfg.Logging.Format = *overrides.LogFormat
	}
	if overrides.AuditEnabled != nil {
		cfg.Audit.Enabled = *overrides.AuditEnabled
	}
	return nil
}
