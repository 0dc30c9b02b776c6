// Package config loads, validates, and defaults hookd's TOML configuration,
// including the ordered handler table the dispatcher is built from.
// Environment variables prefixed HOOKD_ override file values.
package config
