package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hookd/internal/daemon"
	"hookd/internal/ipc"
	"hookd/internal/logging"
	"hookd/internal/rules"
	"hookd/internal/testsupport"
)

func writeTestConfig(t *testing.T) (configPath, stateDir string) {
	t.Helper()
	dir := t.TempDir()
	stateDir = filepath.Join(dir, "state")
	logDir := filepath.Join(dir, "logs")
	configPath = filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[daemon]
idle_timeout_seconds = 60
request_timeout_seconds = 5
shutdown_grace_seconds = 2
`, stateDir, logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, stateDir
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")

	out, err := runCommand(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("init output missing path: %s", out)
	}

	if _, err := runCommand(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	if _, err := runCommand(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}

	configPath, _ := writeTestConfig(t)
	out, err = runCommand(t, "", "--config", configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %s", out)
	}
}

func TestConfigPath(t *testing.T) {
	out, err := runCommand(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, filepath.Join(".config", "hookd", "config.toml")) {
		t.Fatalf("unexpected path output: %s", out)
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	configPath, stateDir := writeTestConfig(t)
	socket := filepath.Join(stateDir, "absent.sock")

	out, err := runCommand(t, "", "--config", configPath, "--socket", socket, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Fatalf("unexpected status output: %s", out)
	}
}

// startBackendDaemon serves a real daemon on socket so CLI commands have
// something to talk to without launching a separate process.
func startBackendDaemon(t *testing.T, socket string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	factory := rules.NewFactory(logging.NewNop(), nil)
	router, err := factory.BuildRouter(cfg.EnabledHandlers())
	if err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}
	d, err := daemon.New(cfg, router, nil, logging.NewStreamHub(64), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Close)
	if err := d.Start(socket); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, socket, d, 5*time.Second, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
}

func TestHookCommandForwardsToDaemon(t *testing.T) {
	configPath, stateDir := writeTestConfig(t)
	socket := filepath.Join(stateDir, "hookd.sock")
	startBackendDaemon(t, socket)

	payload := `{"tool_name":"Bash","tool_input":{"command":"git push --force origin main"}}`
	out, err := runCommand(t, payload, "--config", configPath, "--socket", socket, "hook", "PreToolUse")
	if err != nil {
		t.Fatalf("hook command: %v", err)
	}
	if !strings.Contains(out, `"permissionDecision":"deny"`) {
		t.Fatalf("expected deny output, got %s", out)
	}
}

func TestHookCommandFailsOpenOnBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(badConfig, []byte("[daemon\nidle ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	socket := filepath.Join(dir, "hookd.sock")
	startBackendDaemon(t, socket)

	payload := `{"tool_name":"Read","tool_input":{"file_path":"README.md"}}`
	out, err := runCommand(t, payload, "--config", badConfig, "--socket", socket, "hook", "PreToolUse")
	if err != nil {
		t.Fatalf("unparseable config must not fail the forwarder: %v", err)
	}
	if strings.TrimSpace(out) != "{}" {
		t.Fatalf("expected the empty allow object, got %s", out)
	}
}

func TestModeAndHandlersCommands(t *testing.T) {
	configPath, stateDir := writeTestConfig(t)
	socket := filepath.Join(stateDir, "hookd.sock")
	startBackendDaemon(t, socket)

	out, err := runCommand(t, "", "--config", configPath, "--socket", socket, "mode")
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if !strings.Contains(out, "default") {
		t.Fatalf("unexpected mode output: %s", out)
	}

	out, err = runCommand(t, "", "--config", configPath, "--socket", socket, "mode", "set", "unattended")
	if err != nil {
		t.Fatalf("mode set: %v", err)
	}
	if !strings.Contains(out, "unattended") || !strings.Contains(out, "restart") {
		t.Fatalf("unexpected mode set output: %s", out)
	}

	out, err = runCommand(t, "", "--config", configPath, "--socket", socket, "handlers")
	if err != nil {
		t.Fatalf("handlers: %v", err)
	}
	if !strings.Contains(out, "block-destructive") {
		t.Fatalf("unexpected handlers output: %s", out)
	}
}
