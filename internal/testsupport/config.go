// Package testsupport provides shared fixtures for hookd tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"hookd/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and short timeouts suitable for lifecycle tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Daemon.IdleTimeoutSeconds = 60
	cfg.Daemon.RequestTimeoutSeconds = 5
	cfg.Daemon.ShutdownGraceSeconds = 2
	cfg.Audit.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAudit enables the decision journal on the test config.
func WithAudit() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Audit.Enabled = true
	}
}

// WithIdleTimeout overrides the idle shutdown window in seconds.
func WithIdleTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Daemon.IdleTimeoutSeconds = seconds
	}
}
