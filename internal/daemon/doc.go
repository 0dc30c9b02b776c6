// Package daemon owns the policy daemon's lifecycle and runtime state: the
// state machine from starting through draining, flock-based single-instance
// enforcement, the idle watchdog inputs, the in-memory mode flag, and the
// request path that feeds events through the dispatcher and journals the
// outcome.
package daemon
