package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable before the daemon starts.
// Invalid configuration is a startup fault: the daemon must not reach
// Running on top of it.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateHandlers(); err != nil {
		return err
	}
	if c.Audit.RetentionDays < 0 {
		return errors.New("audit.retention_days must not be negative")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.IdleTimeoutSeconds <= 0 {
		return errors.New("daemon.idle_timeout_seconds must be positive")
	}
	if c.Daemon.RequestTimeoutSeconds <= 0 {
		return errors.New("daemon.request_timeout_seconds must be positive")
	}
	if c.Daemon.ShutdownGraceSeconds <= 0 {
		return errors.New("daemon.shutdown_grace_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.BufferSize < 0 {
		return errors.New("logging.buffer_size must not be negative")
	}
	return nil
}

func (c *Config) validateHandlers() error {
	type key struct{ event, id string }
	seen := make(map[key]struct{}, len(c.Handlers))
	for i, entry := range c.Handlers {
		if strings.TrimSpace(entry.Event) == "" {
			return fmt.Errorf("handlers[%d]: event must be set", i)
		}
		if strings.TrimSpace(entry.ID) == "" {
			return fmt.Errorf("handlers[%d]: id must be set", i)
		}
		k := key{event: entry.Event, id: entry.ID}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("handlers[%d]: duplicate entry %s/%s", i, entry.Event, entry.ID)
		}
		seen[k] = struct{}{}
	}
	return nil
}
