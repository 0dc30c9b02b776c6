// Package dispatch runs the priority-ordered handler chain for one hook
// event and produces exactly one merged result.
//
// Handlers register per event type during startup; after that the chain is
// immutable, so dispatches of distinct events run concurrently without
// locking. A faulting handler is logged and treated as harmless: the engine
// fails open rather than letting one broken rule deny an operation or crash
// the daemon.
package dispatch
