package dispatch

import "hookd/internal/hook"

// Handler is one pluggable rule evaluated against matching events.
//
// Matches must be pure: it inspects the event and external read-only state
// but never mutates anything. Handle is called only after Matches returned
// true. Priorities conventionally fall in 5..60 with lower values running
// first; the range is not enforced.
type Handler interface {
	// Identifier is unique within one event type's chain.
	Identifier() string
	// Priority orders the chain; lower runs first.
	Priority() int
	// Terminal handlers end the dispatch when they execute.
	Terminal() bool
	// Matches reports whether the handler applies to the event.
	Matches(event hook.Event) (bool, error)
	// Handle computes the handler's contribution to the result.
	Handle(event hook.Event) (hook.Result, error)
}

// Info describes one registered handler for administrative output.
type Info struct {
	Event    string `json:"event"`
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	Terminal bool   `json:"terminal"`
}
