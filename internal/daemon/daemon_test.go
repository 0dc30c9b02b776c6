package daemon_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hookd/internal/audit"
	"hookd/internal/config"
	"hookd/internal/daemon"
	"hookd/internal/hook"
	"hookd/internal/logging"
	"hookd/internal/rules"
	"hookd/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	factory := rules.NewFactory(logging.NewNop(), nil)
	router, err := factory.BuildRouter(cfg.EnabledHandlers())
	if err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}
	d, err := daemon.New(cfg, router, nil, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func systemRequest(t *testing.T, req daemon.SystemRequest) []byte {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal system request: %v", err)
	}
	envelope, err := json.Marshal(hook.Request{Event: string(hook.SystemEvent), HookInput: payload})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return envelope
}

func TestStartTransitionsToRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	if d.State() != daemon.StateUninitialized {
		t.Fatalf("fresh daemon state %s", d.State())
	}
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")
	if err := d.Start(socket); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.State() != daemon.StateRunning {
		t.Fatalf("expected running, got %s", d.State())
	}
	if err := d.Start(socket); err == nil {
		t.Fatal("second Start must fail")
	}
}

func TestExclusiveLockRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")
	first := newDaemon(t, cfg)
	if err := first.Start(socket); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := newDaemon(t, cfg)
	err := second.Start(socket)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected single-instance refusal, got %v", err)
	}

	// A different socket means a different project scope: no conflict.
	other := newDaemon(t, cfg)
	if err := other.Start(filepath.Join(cfg.Paths.StateDir, "other.sock")); err != nil {
		t.Fatalf("distinct socket must not conflict: %v", err)
	}

	first.Close()
	third := newDaemon(t, cfg)
	if err := third.Start(socket); err != nil {
		t.Fatalf("lock must be released on Close: %v", err)
	}
}

func TestHealthLatencyCountsOnlyDispatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(filepath.Join(cfg.Paths.StateDir, "hookd.sock")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	payload := json.RawMessage(`{"tool_name":"Bash","tool_input":{"command":"git status"}}`)
	envelope, _ := json.Marshal(hook.Request{Event: "PreToolUse", HookInput: payload})
	d.HandleRequest(ctx, envelope)
	d.HandleRequest(ctx, []byte(`{"event": `))
	d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionHealth}))

	h := d.HealthSnapshot(1234)
	if h.RequestCount != 3 {
		t.Fatalf("RequestCount = %d, want 3", h.RequestCount)
	}
	if h.DispatchCount != 1 {
		t.Fatalf("DispatchCount = %d, want 1: latency averages must divide by dispatches only", h.DispatchCount)
	}
}

func TestStartCreatesLockDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Socket in a directory nothing has created yet, as when a caller
	// binds before preparing state on disk.
	socket := filepath.Join(cfg.Paths.StateDir, "fresh", "hookd.sock")
	d := newDaemon(t, cfg)
	if err := d.Start(socket); err != nil {
		t.Fatalf("Start must create the lock directory: %v", err)
	}
}

func TestNonExclusiveSkipsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) { c.Daemon.Exclusive = false })
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")
	first := newDaemon(t, cfg)
	if err := first.Start(socket); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second := newDaemon(t, cfg)
	if err := second.Start(socket); err != nil {
		t.Fatalf("non-exclusive second Start: %v", err)
	}
}

func TestHandleRequestDispatchesAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	if err := d.Start(filepath.Join(cfg.Paths.StateDir, "hookd.sock")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"tool_name":  "Bash",
		"tool_input": map[string]string{"command": "git reset --hard"},
	})
	envelope, _ := json.Marshal(hook.Request{Event: "PreToolUse", HookInput: payload})

	before := d.LastActivity()
	resp := d.HandleRequest(context.Background(), envelope)

	var decoded hook.Response
	if err := json.Unmarshal(resp, &decoded); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if decoded.HookSpecificOutput == nil || decoded.HookSpecificOutput.PermissionDecision != "deny" {
		t.Fatalf("expected deny response, got %s", resp)
	}

	health := d.HealthSnapshot(1234)
	if health.RequestCount != 1 {
		t.Fatalf("request count %d", health.RequestCount)
	}
	if health.PID != 1234 {
		t.Fatalf("pid %d", health.PID)
	}
	if !d.LastActivity().After(before) {
		t.Fatal("last activity not updated on completion")
	}
}

func TestHandleRequestMalformedFailsOpen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	resp := d.HandleRequest(context.Background(), []byte(`{"event": `))
	if string(resp) != "{}" {
		t.Fatalf("malformed request must yield {}, got %s", resp)
	}
	if health := d.HealthSnapshot(0); health.ErrorCount != 1 {
		t.Fatalf("error count %d", health.ErrorCount)
	}
}

func TestHandleRequestJournalsDecisions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAudit())
	journal, err := audit.Open(cfg.AuditDBPath())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	factory := rules.NewFactory(logging.NewNop(), nil)
	router, err := factory.BuildRouter(cfg.EnabledHandlers())
	if err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}
	d, err := daemon.New(cfg, router, journal, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Close)

	envelope, _ := json.Marshal(hook.Request{Event: "PreToolUse",
		HookInput: json.RawMessage(`{"tool_name":"Bash","tool_input":{"command":"git push -f"}}`)})
	d.HandleRequest(context.Background(), envelope)

	records, err := journal.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(records))
	}
	if records[0].Decision != "deny" || records[0].TerminatedBy != rules.RuleBlockDestructive {
		t.Fatalf("unexpected journal record %+v", records[0])
	}
}

func TestIdleExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIdleTimeout(60))
	d := newDaemon(t, cfg)
	if err := d.Start(filepath.Join(cfg.Paths.StateDir, "hookd.sock")); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if d.IdleExpired(time.Now()) {
		t.Fatal("fresh daemon must not be idle-expired")
	}
	if !d.IdleExpired(time.Now().Add(61 * time.Second)) {
		t.Fatal("expired window not detected")
	}

	d.HandleRequest(context.Background(), []byte(`{"event":"SessionEnd"}`))
	if d.IdleExpired(time.Now().Add(30 * time.Second)) {
		t.Fatal("activity must reset the idle window")
	}
}

func TestModeResetsAndValidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	if d.Mode() != daemon.ModeDefault {
		t.Fatalf("initial mode %q", d.Mode())
	}
	note, err := d.SetMode(daemon.ModeUnattended)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if !strings.Contains(note, "restart") {
		t.Fatalf("note must warn about restarts: %q", note)
	}
	if _, err := d.SetMode("turbo"); err == nil {
		t.Fatal("unknown mode must be rejected")
	}

	// A new daemon (a restart stand-in) starts back at default.
	fresh := newDaemon(t, testsupport.NewConfig(t))
	if fresh.Mode() != daemon.ModeDefault {
		t.Fatalf("mode must not persist, got %q", fresh.Mode())
	}
}

func TestSystemActions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	hub := logging.NewStreamHub(16)
	hub.Publish(logging.LogEvent{Level: "warn", Message: "something happened"})

	factory := rules.NewFactory(logging.NewNop(), nil)
	router, err := factory.BuildRouter(cfg.EnabledHandlers())
	if err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}
	d, err := daemon.New(cfg, router, nil, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Close)
	ctx := context.Background()

	var logs daemon.LogsResponse
	if err := json.Unmarshal(d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionGetLogs, Count: 10})), &logs); err != nil {
		t.Fatalf("unmarshal logs: %v", err)
	}
	if len(logs.Events) != 1 || logs.Events[0].Message != "something happened" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	var health daemon.Health
	if err := json.Unmarshal(d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionHealth})), &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.HandlerCounts["PreToolUse"] == 0 {
		t.Fatalf("health missing handler counts: %+v", health)
	}

	var mode daemon.ModeResponse
	if err := json.Unmarshal(d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionSetMode, Mode: "unattended"})), &mode); err != nil {
		t.Fatalf("unmarshal mode: %v", err)
	}
	if mode.Mode != "unattended" || mode.Message == "" {
		t.Fatalf("unexpected set_mode response %+v", mode)
	}
	if err := json.Unmarshal(d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionGetMode})), &mode); err != nil {
		t.Fatalf("unmarshal mode: %v", err)
	}
	if mode.Mode != "unattended" {
		t.Fatalf("get_mode returned %q", mode.Mode)
	}

	var handlers daemon.HandlersResponse
	if err := json.Unmarshal(d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: daemon.ActionHandlers})), &handlers); err != nil {
		t.Fatalf("unmarshal handlers: %v", err)
	}
	if len(handlers.Handlers) != len(cfg.EnabledHandlers()) {
		t.Fatalf("unexpected handlers %+v", handlers.Handlers)
	}

	if resp := d.HandleRequest(ctx, systemRequest(t, daemon.SystemRequest{Action: "self_destruct"})); string(resp) != "{}" {
		t.Fatalf("unknown action must be silent, got %s", resp)
	}
}
