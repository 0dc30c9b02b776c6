package ipc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSocketPath is the portable sun_path capacity. Linux allows 108 bytes
// and macOS 104; the smaller bound keeps the fallback behavior uniform.
const maxSocketPath = 104

// StateDirName is the per-project directory holding the socket and the
// discovery file.
const StateDirName = ".hookd"

// discoveryFileName stores the real socket path when the preferred one was
// too long to bind.
const discoveryFileName = "socket"

// SocketPath returns the socket the daemon should bind for projectDir. The
// preferred location lives inside the project so concurrent projects get
// independent daemons. When that path would not fit in sun_path, the socket
// moves to the runtime directory under a name derived from the project
// path, and callers must persist a discovery file so clients can find it.
func SocketPath(projectDir string) (path string, fallback bool) {
	preferred := filepath.Join(projectDir, StateDirName, "hookd.sock")
	if len(preferred) < maxSocketPath {
		return preferred, false
	}
	return fallbackSocketPath(projectDir), true
}

func fallbackSocketPath(projectDir string) string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = os.TempDir()
	}
	sum := sha256.Sum256([]byte(projectDir))
	name := fmt.Sprintf("hookd-%s.sock", hex.EncodeToString(sum[:8]))
	return filepath.Join(base, name)
}

// PIDPath returns the daemon PID file for a socket path. It lives next to
// the socket so every project-scoped daemon keeps its own.
func PIDPath(socketPath string) string {
	return strings.TrimSuffix(socketPath, ".sock") + ".pid"
}

// LockPath returns the single-instance lock file for a socket path.
func LockPath(socketPath string) string {
	return strings.TrimSuffix(socketPath, ".sock") + ".lock"
}

// DiscoveryFilePath returns the location of the discovery file for
// projectDir.
func DiscoveryFilePath(projectDir string) string {
	return filepath.Join(projectDir, StateDirName, discoveryFileName)
}

// WriteDiscovery records the bound socket path so clients of this project
// can reach a daemon whose socket lives outside the project tree.
func WriteDiscovery(projectDir, socketPath string) error {
	dir := filepath.Join(projectDir, StateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(DiscoveryFilePath(projectDir), []byte(socketPath+"\n"), 0o644); err != nil {
		return fmt.Errorf("write socket discovery file: %w", err)
	}
	return nil
}

// RemoveDiscovery deletes the discovery file if present.
func RemoveDiscovery(projectDir string) error {
	err := os.Remove(DiscoveryFilePath(projectDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ResolveSocketPath returns the socket a client should dial for projectDir.
// A discovery file written by the daemon wins over the preferred location.
func ResolveSocketPath(projectDir string) string {
	if data, err := os.ReadFile(DiscoveryFilePath(projectDir)); err == nil {
		if path := strings.TrimSpace(string(data)); path != "" {
			return path
		}
	}
	path, _ := SocketPath(projectDir)
	return path
}
