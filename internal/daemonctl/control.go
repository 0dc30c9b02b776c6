// Package daemonctl orchestrates the daemon process from the outside: lazy
// launch, liveness probing, and graceful or forced shutdown. It is the only
// package that starts or kills daemon processes; the CLI stays a thin layer
// over it.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hookd/internal/ipc"
)

// ErrDaemonNotRunning indicates no daemon is reachable on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

// StartState names the outcome of an EnsureStarted call.
type StartState string

const (
	StartStateLaunched       StartState = "launched"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State  StartState
	Client *ipc.Client
}

// Launch starts a detached daemon process running `hookd daemon run`. The
// child owns its own lifetime: it outlives the launching CLI and exits on
// its own idle timeout.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForSocket polls until a daemon accepts connections on socketPath.
func WaitForSocket(socketPath string, timeout time.Duration) error {
	client := ipc.NewClient(socketPath, 250*time.Millisecond)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if client.Ping() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon failed to start within %s", timeout)
}

// EnsureStarted returns a client for a running daemon, launching one first
// when the socket is unreachable. This is the lazy-start path the hook
// forwarder depends on: the first hook of a session pays the launch cost,
// later hooks find the daemon already up.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client := ipc.NewClient(socketPath, 2*time.Second)
	if client.Ping() {
		return StartResult{State: StartStateAlreadyRunning, Client: client}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForSocket(socketPath, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateLaunched, Client: client}, nil
}

// ReadPID returns the daemon PID recorded by a running daemon, or an error
// when the file is absent or malformed.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %q", pidPath)
	}
	return pid, nil
}

// ProcessAlive reports whether the pid names a live process we can signal.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Signaled   bool
	ForcedKill bool
	PID        int
}

// StopAndTerminate asks a running daemon to drain via SIGTERM and escalates
// to SIGKILL when it is still alive after gracePeriod. Stale pid and socket
// files are cleaned up on the forced path.
func StopAndTerminate(socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client := ipc.NewClient(socketPath, time.Second)
	reachable := client.Ping()

	pidPath := ipc.PIDPath(socketPath)
	pid, pidErr := ReadPID(pidPath)
	if pidErr != nil && !reachable {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pidErr != nil {
		return StopResult{}, fmt.Errorf("daemon reachable but pid unknown: %w", pidErr)
	}
	if !ProcessAlive(pid) {
		// Crashed daemon left stale files behind.
		_ = os.Remove(pidPath)
		_ = os.Remove(socketPath)
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result := StopResult{Signaled: true, PID: pid}

	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return result, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	_ = os.Remove(pidPath)
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	return result, nil
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Restart stops the daemon if running, then launches a fresh one.
func Restart(socketPath string, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}
