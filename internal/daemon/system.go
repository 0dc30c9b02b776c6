package daemon

import (
	"context"
	"encoding/json"
	"os"

	"hookd/internal/dispatch"
	"hookd/internal/hook"
	"hookd/internal/logging"
)

// System actions carried by the _system pseudo-event.
const (
	ActionGetLogs  = "get_logs"
	ActionHealth   = "health"
	ActionGetMode  = "get_mode"
	ActionSetMode  = "set_mode"
	ActionHandlers = "handlers"
)

// SystemRequest is the hook_input payload of a _system event.
type SystemRequest struct {
	Action string `json:"action"`
	Count  int    `json:"count,omitempty"`
	Level  string `json:"level,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// LogsResponse carries recent log events.
type LogsResponse struct {
	Events []logging.LogEvent `json:"events"`
}

// ModeResponse carries the current mode and an optional advisory message.
type ModeResponse struct {
	Mode    string `json:"mode"`
	Message string `json:"message,omitempty"`
}

// HandlersResponse lists registered handlers in execution order.
type HandlersResponse struct {
	Handlers []dispatch.Info `json:"handlers"`
}

// handleSystem serves administrative actions directly, bypassing the
// handler chain. Unknown or malformed actions degrade to the empty
// response like every other protocol fault.
func (d *Daemon) handleSystem(_ context.Context, payload []byte) []byte {
	var req SystemRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			d.logger.Warn("malformed system action", logging.Error(err))
			return hook.EmptyResponse
		}
	}

	switch req.Action {
	case ActionGetLogs:
		if d.hub == nil {
			return marshalSystem(LogsResponse{})
		}
		events := d.hub.Snapshot(req.Count, logging.ParseLevel(req.Level))
		return marshalSystem(LogsResponse{Events: events})
	case ActionHealth:
		return marshalSystem(d.HealthSnapshot(os.Getpid()))
	case ActionGetMode:
		return marshalSystem(ModeResponse{Mode: d.Mode()})
	case ActionSetMode:
		note, err := d.SetMode(req.Mode)
		if err != nil {
			return marshalSystem(ModeResponse{Mode: d.Mode(), Message: err.Error()})
		}
		return marshalSystem(ModeResponse{Mode: d.Mode(), Message: note})
	case ActionHandlers:
		return marshalSystem(HandlersResponse{Handlers: d.router.Handlers()})
	default:
		d.logger.Warn("unknown system action", logging.String("action", req.Action))
		return hook.EmptyResponse
	}
}

func marshalSystem(value any) []byte {
	data, err := json.Marshal(value)
	if err != nil {
		return hook.EmptyResponse
	}
	return data
}
