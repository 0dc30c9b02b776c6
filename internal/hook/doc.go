// Package hook defines the wire protocol between the forwarder and the
// daemon: the event taxonomy, the request envelope, the dispatch result
// model, and the per-event-type response shaping expected by the coding
// agent. The protocol fails open: malformed input always serializes back to
// a well-formed, permissive response.
package hook
