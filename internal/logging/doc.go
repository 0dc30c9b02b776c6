// Package logging assembles the structured slog loggers used across hookd.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attr helpers so components emit log lines with a
// consistent shape. The package also provides a bounded in-memory stream hub
// that retains recent events for the daemon's get_logs administrative action,
// and a no-op logger for tests and wiring code that cannot fail.
package logging
