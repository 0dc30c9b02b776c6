package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hookd/internal/daemonrun"
	"hookd/internal/ipc"
	"hookd/internal/testsupport"
)

func TestRunServesUntilCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	project := t.TempDir()
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			ProjectDir: project,
			SocketPath: socket,
			LogLevel:   "error",
		})
	}()

	if err := waitForSocket(socket, 5*time.Second); err != nil {
		cancel()
		t.Fatalf("daemon never came up: %v", err)
	}

	client := ipc.NewClient(socket, 2*time.Second)
	resp, err := client.Forward("PreToolUse",
		[]byte(`{"tool_name":"Bash","tool_input":{"command":"rm -rf /"}}`))
	if err != nil {
		cancel()
		t.Fatalf("Forward: %v", err)
	}
	if string(resp) == "{}" {
		cancel()
		t.Fatal("destructive command must not pass silently")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
}

func TestRefusedSecondRunLeavesPIDFileIntact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	project := t.TempDir()
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")
	pidPath := ipc.PIDPath(socket)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			ProjectDir: project,
			SocketPath: socket,
			LogLevel:   "error",
		})
	}()

	if err := waitForSocket(socket, 5*time.Second); err != nil {
		cancel()
		t.Fatalf("daemon never came up: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		cancel()
		t.Fatalf("running daemon has no pid file: %v", err)
	}

	if err := daemonrun.Run(ctx, cfg, daemonrun.Options{
		ProjectDir: project,
		SocketPath: socket,
		LogLevel:   "error",
	}); err == nil {
		cancel()
		t.Fatal("second start against a live daemon must be refused")
	}

	if _, err := os.Stat(pidPath); err != nil {
		cancel()
		t.Fatalf("refused second start destroyed the live daemon's pid file: %v", err)
	}
	if !ipc.NewClient(socket, time.Second).Ping() {
		cancel()
		t.Fatal("daemon stopped answering after refused second start")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed on shutdown, stat err: %v", err)
	}
}

func TestRunExitsOnIdleTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("idle timeout test sleeps for multiple seconds")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithIdleTimeout(1))
	socket := filepath.Join(cfg.Paths.StateDir, "hookd.sock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			ProjectDir: t.TempDir(),
			SocketPath: socket,
			LogLevel:   "error",
		})
	}()

	if err := waitForSocket(socket, 5*time.Second); err != nil {
		t.Fatalf("daemon never came up: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not exit on idle timeout")
	}
}

func TestRunRejectsNilConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("nil config must be a startup fault")
	}
}

func waitForSocket(path string, timeout time.Duration) error {
	client := ipc.NewClient(path, 250*time.Millisecond)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.Ping() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return context.DeadlineExceeded
}
