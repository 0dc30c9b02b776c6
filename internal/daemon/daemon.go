package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"hookd/internal/audit"
	"hookd/internal/config"
	"hookd/internal/dispatch"
	"hookd/internal/hook"
	"hookd/internal/logging"
)

// Daemon coordinates dispatching and lifecycle for one policy daemon
// process. It is created once at startup and threaded explicitly through
// the accept loop and the idle watchdog.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *dispatch.Router
	journal *audit.Store
	hub     *logging.StreamHub

	lockPath string
	lock     *flock.Flock
	locked   bool

	socketPath string

	state         atomic.Int32
	startTime     time.Time
	requestCount  atomic.Int64
	dispatchCount atomic.Int64
	errorCount    atomic.Int64
	latencySumMS  atomic.Int64
	lastActivity  atomic.Int64 // unix nanos of the last completed dispatch

	modeMu sync.RWMutex
	mode   string
}

// New constructs a daemon. The journal may be nil when auditing is
// disabled; the hub may be nil when log streaming is unavailable.
func New(cfg *config.Config, router *dispatch.Router, journal *audit.Store, hub *logging.StreamHub, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || router == nil {
		return nil, errors.New("daemon requires config and router")
	}
	return &Daemon{
		cfg:     cfg,
		logger:  logging.WithComponent(logger, "daemon"),
		router:  router,
		journal: journal,
		hub:     hub,
		mode:    ModeDefault,
	}, nil
}

// Start transitions Uninitialized -> Starting -> Running, acquiring the
// single-instance lock when the config demands exclusivity. A failure here
// is a startup fault: the caller must exit without serving.
func (d *Daemon) Start(socketPath string) error {
	if !d.state.CompareAndSwap(int32(StateUninitialized), int32(StateStarting)) {
		return fmt.Errorf("daemon already %s", d.State())
	}

	if d.cfg.Daemon.Exclusive {
		// The lock lives next to the socket so each project-scoped
		// daemon guards only its own socket.
		d.lockPath = strings.TrimSuffix(socketPath, ".sock") + ".lock"
		if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
			d.state.Store(int32(StateStopped))
			return fmt.Errorf("create lock dir: %w", err)
		}
		d.lock = flock.New(d.lockPath)
		ok, err := d.lock.TryLock()
		if err != nil {
			d.state.Store(int32(StateStopped))
			return fmt.Errorf("acquire daemon lock: %w", err)
		}
		if !ok {
			d.state.Store(int32(StateStopped))
			return errors.New("another hookd daemon instance is already running")
		}
		d.locked = true
	}

	d.socketPath = socketPath
	d.startTime = time.Now().UTC()
	d.lastActivity.Store(d.startTime.UnixNano())
	d.state.Store(int32(StateRunning))
	d.logger.Info("daemon running",
		logging.String("socket", socketPath),
		logging.String("lock", d.lockPath),
		logging.Duration("idle_timeout", d.cfg.IdleTimeout()))
	return nil
}

// Drain moves Running -> Draining. Idempotent: later calls are no-ops.
func (d *Daemon) Drain(reason string) {
	if !d.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return
	}
	d.logger.Info("daemon draining", logging.String("reason", reason))
}

// Close finishes the shutdown: releases the lock and marks Stopped.
func (d *Daemon) Close() {
	d.Drain("close")
	if d.state.CompareAndSwap(int32(StateDraining), int32(StateStopped)) ||
		d.state.CompareAndSwap(int32(StateStarting), int32(StateStopped)) {
		if d.locked {
			if err := d.lock.Unlock(); err != nil {
				d.logger.Warn("failed to release daemon lock", logging.Error(err))
			}
			d.locked = false
		}
		d.logger.Info("daemon stopped",
			logging.Int64("requests_served", d.requestCount.Load()))
	}
}

// State returns the current lifecycle phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Mode returns the current in-memory mode.
func (d *Daemon) Mode() string {
	d.modeMu.RLock()
	defer d.modeMu.RUnlock()
	return d.mode
}

// SetMode switches the mode. The returned note reminds callers that modes
// do not survive restarts.
func (d *Daemon) SetMode(mode string) (string, error) {
	if !ValidMode(mode) {
		return "", fmt.Errorf("unknown mode %q", mode)
	}
	d.modeMu.Lock()
	previous := d.mode
	d.mode = mode
	d.modeMu.Unlock()
	d.logger.Info("mode changed",
		logging.String("previous", previous),
		logging.String("mode", mode))
	return "mode resets to default on every daemon restart; re-apply it after restarts", nil
}

// LastActivity returns the completion time of the most recent dispatch.
func (d *Daemon) LastActivity() time.Time {
	return time.Unix(0, d.lastActivity.Load())
}

// IdleExpired reports whether the idle window has elapsed at now.
func (d *Daemon) IdleExpired(now time.Time) bool {
	return now.Sub(d.LastActivity()) > d.cfg.IdleTimeout()
}

// HandleRequest processes one request envelope and returns the response
// bytes. It never fails: malformed input and internal faults both yield a
// well-formed permissive response.
func (d *Daemon) HandleRequest(ctx context.Context, data []byte) []byte {
	started := time.Now()
	correlationID := uuid.NewString()

	req, err := hook.ParseRequest(data)
	if err != nil {
		d.errorCount.Add(1)
		d.logger.Warn("malformed request",
			logging.String(logging.FieldCorrelationID, correlationID),
			logging.Error(err))
		d.completeRequest()
		return hook.EmptyResponse
	}

	if hook.EventType(req.Event) == hook.SystemEvent {
		resp := d.handleSystem(ctx, req.HookInput)
		d.completeRequest()
		return resp
	}

	event := hook.Event{Type: hook.EventType(req.Event), Payload: req.HookInput}
	result := d.router.Dispatch(event)
	duration := time.Since(started)

	d.logger.Debug("dispatch complete",
		logging.String(logging.FieldCorrelationID, correlationID),
		logging.String(logging.FieldEventType, req.Event),
		logging.String("decision", string(result.Decision)),
		logging.String("terminated_by", result.TerminatedBy),
		logging.Int("handlers_matched", len(result.HandlersMatched)),
		logging.Duration("duration", duration))

	if d.journal != nil {
		rec := audit.Record{
			CorrelationID: correlationID,
			Event:         req.Event,
			Decision:      string(result.Decision),
			TerminatedBy:  result.TerminatedBy,
			Reason:        result.Reason,
			DurationMS:    duration.Milliseconds(),
		}
		if err := d.journal.Append(ctx, rec); err != nil {
			d.logger.Warn("journal append failed", logging.Error(err))
		}
	}

	d.dispatchCount.Add(1)
	d.latencySumMS.Add(duration.Milliseconds())
	d.completeRequest()
	return hook.MarshalResponse(event.Type, result)
}

// completeRequest updates the counters gating the idle watchdog. Activity
// is recorded at completion, not arrival, so slow requests cannot starve
// the idle check.
func (d *Daemon) completeRequest() {
	d.requestCount.Add(1)
	d.lastActivity.Store(time.Now().UnixNano())
}

// Health summarizes daemon runtime state for administrative callers.
type Health struct {
	State         string         `json:"state"`
	Mode          string         `json:"mode"`
	PID           int            `json:"pid"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	RequestCount  int64          `json:"request_count"`
	DispatchCount int64          `json:"dispatch_count"`
	ErrorCount    int64          `json:"error_count"`
	AvgLatencyMS  float64        `json:"avg_latency_ms"`
	HandlerCounts map[string]int `json:"handler_counts"`
	SocketPath    string         `json:"socket_path"`
}

// HealthSnapshot returns current counters.
func (d *Daemon) HealthSnapshot(pid int) Health {
	requests := d.requestCount.Load()
	// Latency is tracked per dispatch; _system and malformed requests
	// bump requestCount without dispatching, so they stay out of the
	// average.
	dispatches := d.dispatchCount.Load()
	var avg float64
	if dispatches > 0 {
		avg = float64(d.latencySumMS.Load()) / float64(dispatches)
	}
	uptime := int64(0)
	if !d.startTime.IsZero() {
		uptime = int64(time.Since(d.startTime).Seconds())
	}
	return Health{
		State:         d.State().String(),
		Mode:          d.Mode(),
		PID:           pid,
		UptimeSeconds: uptime,
		RequestCount:  requests,
		DispatchCount: dispatches,
		ErrorCount:    d.errorCount.Load(),
		AvgLatencyMS:  avg,
		HandlerCounts: d.router.HandlerCounts(),
		SocketPath:    d.socketPath,
	}
}
