package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StateDir holds the PID file, lock file, and discovery file.
	StateDir string `toml:"state_dir"`
	// LogDir holds daemon log files.
	LogDir string `toml:"log_dir"`
}

// Daemon contains process lifecycle configuration.
type Daemon struct {
	// SocketPath overrides the resolved project-local socket when set.
	SocketPath string `toml:"socket_path"`
	// IdleTimeoutSeconds of no completed dispatches before self-shutdown.
	IdleTimeoutSeconds int `toml:"idle_timeout_seconds"`
	// RequestTimeoutSeconds bounds one connection's read+dispatch+write.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	// ShutdownGraceSeconds bounds draining after a stop signal.
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
	// Exclusive refuses startup while another live daemon owns the lock.
	Exclusive bool `toml:"exclusive"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// BufferSize is the in-memory event retention served by get_logs.
	BufferSize int `toml:"buffer_size"`
}

// Audit contains decision journal configuration.
type Audit struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// HandlerEntry is one row of the ordered handler table: which built-in rule
// runs for which event, at what priority.
type HandlerEntry struct {
	Event    string `toml:"event"`
	ID       string `toml:"id"`
	Enabled  bool   `toml:"enabled"`
	Priority int    `toml:"priority"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths          `toml:"paths"`
	Daemon   Daemon         `toml:"daemon"`
	Logging  Logging        `toml:"logging"`
	Audit    Audit          `toml:"audit"`
	Handlers []HandlerEntry `toml:"handlers"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hookd", "config.toml"), nil
}

// Load reads the config file at path (or the default location when empty),
// applies defaults for unset values, then environment overrides. A missing
// file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		resolved = defaultPath
	}
	resolved = ExpandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// WriteSample writes the embedded sample config to path. Unless overwrite
// is set, an existing file is refused.
func WriteSample(path string, overwrite bool) error {
	resolved := ExpandPath(path)
	if _, err := os.Stat(resolved); err == nil && !overwrite {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// IdleTimeout returns the idle shutdown window as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Daemon.IdleTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request processing bound.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Daemon.RequestTimeoutSeconds) * time.Second
}

// ShutdownGrace returns the drain bound applied on stop signals.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Daemon.ShutdownGraceSeconds) * time.Second
}

// AuditDBPath returns the decision journal location.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.Paths.StateDir, "audit.db")
}

// EnabledHandlers returns the enabled handler entries in table order.
func (c *Config) EnabledHandlers() []HandlerEntry {
	entries := make([]HandlerEntry, 0, len(c.Handlers))
	for _, entry := range c.Handlers {
		if entry.Enabled {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (c *Config) normalize() {
	c.Paths.StateDir = ExpandPath(c.Paths.StateDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.Daemon.SocketPath = ExpandPath(c.Daemon.SocketPath)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || !strings.HasPrefix(trimmed, "~") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	if trimmed == "~" {
		return home
	}
	if strings.HasPrefix(trimmed, "~/") {
		return filepath.Join(home, trimmed[2:])
	}
	return trimmed
}
