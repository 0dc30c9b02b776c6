package hook

import "encoding/json"

// EventType identifies one hook event emitted by the coding agent.
type EventType string

const (
	PreToolUse       EventType = "PreToolUse"
	PostToolUse      EventType = "PostToolUse"
	UserPromptSubmit EventType = "UserPromptSubmit"
	SessionStart     EventType = "SessionStart"
	SessionEnd       EventType = "SessionEnd"
	Stop             EventType = "Stop"
	SubagentStop     EventType = "SubagentStop"
	Notification     EventType = "Notification"
	Status           EventType = "Status"

	// SystemEvent carries administrative actions handled by the daemon
	// itself, bypassing the handler chain.
	SystemEvent EventType = "_system"
)

// Category groups event types by the response shape they require.
type Category int

const (
	// CategorySilent events never carry a decision; the response is {}.
	CategorySilent Category = iota
	// CategoryGating events gate tool invocations with allow/deny/ask.
	CategoryGating
	// CategoryContinuation events may block continuation with a top-level
	// decision field.
	CategoryContinuation
	// CategoryContext events only inject additional context.
	CategoryContext
	// CategoryStatusText events return plain display text.
	CategoryStatusText
)

// Category returns the response-shaping category for the event type.
// Unknown event names are treated as silent so the daemon stays permissive
// when the agent grows new hooks.
func (e EventType) Category() Category {
	switch e {
	case PreToolUse:
		return CategoryGating
	case PostToolUse, Stop, SubagentStop:
		return CategoryContinuation
	case UserPromptSubmit, SessionStart:
		return CategoryContext
	case Status:
		return CategoryStatusText
	default:
		return CategorySilent
	}
}

// KnownEventTypes lists every event type the daemon dispatches handlers for.
func KnownEventTypes() []EventType {
	return []EventType{
		PreToolUse,
		PostToolUse,
		UserPromptSubmit,
		SessionStart,
		SessionEnd,
		Stop,
		SubagentStop,
		Notification,
		Status,
	}
}

// Event is one structured occurrence submitted for evaluation. The payload
// is kept opaque; handlers query it themselves.
type Event struct {
	Type    EventType
	Payload json.RawMessage
}

// Request is the JSON envelope read from one IPC connection.
type Request struct {
	Event     string          `json:"event"`
	HookInput json.RawMessage `json:"hook_input,omitempty"`
}

// ParseRequest decodes the envelope. Callers treat a returned error as a
// malformed request, never as a protocol failure.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}
