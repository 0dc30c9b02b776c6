package daemon

// State is the daemon lifecycle phase.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Modes the daemon can run in. The mode is in-memory only and resets to
// default on every restart.
const (
	ModeDefault    = "default"
	ModeUnattended = "unattended"
)

// ValidMode reports whether the mode name is recognized.
func ValidMode(mode string) bool {
	return mode == ModeDefault || mode == ModeUnattended
}
