package rules

import (
	"fmt"
	"log/slog"

	"hookd/internal/config"
	"hookd/internal/dispatch"
	"hookd/internal/hook"
	"hookd/internal/logging"
)

// Factory builds live handlers from configuration entries.
type Factory struct {
	logger *slog.Logger
	mode   ModeFunc
}

// NewFactory constructs a factory. mode supplies the daemon's current mode
// to mode-sensitive rules and may be nil.
func NewFactory(logger *slog.Logger, mode ModeFunc) *Factory {
	return &Factory{logger: logging.WithComponent(logger, "rules"), mode: mode}
}

// Build turns one enabled handler entry into a handler instance.
func (f *Factory) Build(entry config.HandlerEntry) (dispatch.Handler, error) {
	switch entry.ID {
	case RuleBlockDestructive:
		return newBlockDestructive(entry.Priority), nil
	case RuleProtectSensitivePaths:
		return newProtectSensitivePaths(entry.Priority), nil
	case RuleUnattendedGate:
		return newUnattendedGate(entry.Priority, f.mode), nil
	case RuleSpellingAdvisory:
		return newSpellingAdvisory(entry.Priority), nil
	default:
		return nil, fmt.Errorf("unknown handler id %q", entry.ID)
	}
}

// BuildRouter registers every enabled entry on a fresh router, in table
// order so equal priorities keep their configured order.
func (f *Factory) BuildRouter(entries []config.HandlerEntry) (*dispatch.Router, error) {
	router := dispatch.NewRouter(f.logger)
	for _, entry := range entries {
		handler, err := f.Build(entry)
		if err != nil {
			return nil, fmt.Errorf("handler table entry %s/%s: %w", entry.Event, entry.ID, err)
		}
		if err := router.Register(hook.EventType(entry.Event), handler); err != nil {
			return nil, err
		}
		f.logger.Debug("handler registered",
			logging.String(logging.FieldEventType, entry.Event),
			logging.String(logging.FieldHandlerID, entry.ID),
			logging.Int("priority", entry.Priority),
			logging.Bool("terminal", handler.Terminal()))
	}
	return router, nil
}
