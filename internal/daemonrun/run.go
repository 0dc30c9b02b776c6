// Package daemonrun is the daemon process entrypoint shared by the CLI. It
// wires config, logging, the handler chain, the audit journal, and the IPC
// server into one foreground run that ends on SIGINT, SIGTERM, or idle
// timeout.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"hookd/internal/audit"
	"hookd/internal/config"
	"hookd/internal/daemon"
	"hookd/internal/ipc"
	"hookd/internal/logging"
	"hookd/internal/rules"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ProjectDir scopes the daemon to one project; defaults to the
	// working directory.
	ProjectDir string
	// SocketPath overrides resolution entirely when set.
	SocketPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
}

// Run starts the daemon runtime loop and blocks until shutdown completes.
// Startup faults return an error so the process exits non-zero; once the
// daemon is serving, every exit path drains first.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	projectDir := opts.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		projectDir = wd
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("hookd-%s.log", runID))
	logHub := logging.NewStreamHub(cfg.Logging.BufferSize)

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var journal *audit.Store
	if cfg.Audit.Enabled {
		journal, err = audit.Open(cfg.AuditDBPath())
		if err != nil {
			logger.Error("open audit journal", logging.Error(err))
			return err
		}
		defer journal.Close()
		cutoff := time.Now().AddDate(0, 0, -cfg.Audit.RetentionDays)
		if pruned, pruneErr := journal.Prune(signalCtx, cutoff); pruneErr != nil {
			logger.Warn("audit prune failed", logging.Error(pruneErr))
		} else if pruned > 0 {
			logger.Debug("audit journal pruned", logging.Int64("removed", pruned))
		}
	}

	// The mode-sensitive rules need the daemon's mode before the daemon
	// exists; the indirection closes over the variable assigned below.
	var d *daemon.Daemon
	modeFn := func() string {
		if d == nil {
			return daemon.ModeDefault
		}
		return d.Mode()
	}
	factory := rules.NewFactory(logger, modeFn)
	router, err := factory.BuildRouter(cfg.EnabledHandlers())
	if err != nil {
		return fmt.Errorf("build handler chain: %w", err)
	}

	d, err = daemon.New(cfg, router, journal, logHub, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath, usedFallback, err := resolveSocket(cfg, opts, projectDir)
	if err != nil {
		return err
	}
	// Start acquires the single-instance lock. The PID and discovery
	// files belong to the instance holding the lock, so they are written
	// only after Start succeeds; a refused second start must not touch
	// the live daemon's files.
	if err := d.Start(socketPath); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	pidPath := ipc.PIDPath(socketPath)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)
	if usedFallback {
		if err := ipc.WriteDiscovery(projectDir, socketPath); err != nil {
			return err
		}
		defer func() {
			if err := ipc.RemoveDiscovery(projectDir); err != nil {
				logger.Warn("failed to remove socket discovery file", logging.Error(err))
			}
		}()
	}

	server, err := ipc.NewServer(signalCtx, socketPath, d, cfg.RequestTimeout(), logger)
	if err != nil {
		logger.Error("bind ipc socket", logging.Error(err))
		return err
	}
	server.Serve()

	logger.Info("hookd daemon ready",
		logging.String("project", projectDir),
		logging.String("socket", socketPath),
		logging.String("log_file", logPath))

	reason := waitForShutdown(signalCtx, d, cfg.IdleTimeout())
	d.Drain(reason)
	server.Close()
	logger.Info("hookd daemon shut down", logging.String("reason", reason))
	return nil
}

func resolveSocket(cfg *config.Config, opts Options, projectDir string) (string, bool, error) {
	path := opts.SocketPath
	fallback := false
	switch {
	case path != "":
	case cfg.Daemon.SocketPath != "":
		path = cfg.Daemon.SocketPath
	default:
		path, fallback = ipc.SocketPath(projectDir)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("create socket dir: %w", err)
	}
	return path, fallback, nil
}

// waitForShutdown blocks until a termination signal arrives or the idle
// window elapses with no completed requests. The watchdog checks activity
// rather than arming a timer per request, so a burst of traffic costs
// nothing extra.
func waitForShutdown(ctx context.Context, d *daemon.Daemon, idleTimeout time.Duration) string {
	interval := idleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "signal"
		case now := <-ticker.C:
			if d.State() == daemon.StateRunning && d.IdleExpired(now) {
				return "idle timeout"
			}
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
