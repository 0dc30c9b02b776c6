package dispatch

import (
	"fmt"
	"log/slog"
	"sort"

	"hookd/internal/hook"
	"hookd/internal/logging"
)

// Router owns the ordered handler chains and runs the decision algorithm.
type Router struct {
	logger *slog.Logger
	chains map[hook.EventType][]registration
}

type registration struct {
	handler Handler
	order   int
}

// NewRouter constructs an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger: logging.WithComponent(logger, "dispatch"),
		chains: make(map[hook.EventType][]registration),
	}
}

// Register inserts a handler into the chain for the event type and re-sorts
// by (priority ascending, registration order ascending). The equal-priority
// tie-break on registration order is a contract: it keeps dispatch outcomes
// deterministic. Register is startup-only and must never run concurrently
// with Dispatch.
func (r *Router) Register(eventType hook.EventType, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("register %s: nil handler", eventType)
	}
	id := handler.Identifier()
	if id == "" {
		return fmt.Errorf("register %s: handler identifier is empty", eventType)
	}
	chain := r.chains[eventType]
	for _, reg := range chain {
		if reg.handler.Identifier() == id {
			return fmt.Errorf("register %s: duplicate handler id %q", eventType, id)
		}
	}
	chain = append(chain, registration{handler: handler, order: len(chain)})
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].handler.Priority() != chain[j].handler.Priority() {
			return chain[i].handler.Priority() < chain[j].handler.Priority()
		}
		return chain[i].order < chain[j].order
	})
	r.chains[eventType] = chain
	return nil
}

// Dispatch runs the chain for the event and returns the merged result.
// It never panics and never returns an error: every internal fault is
// absorbed as a harmless allow.
func (r *Router) Dispatch(event hook.Event) hook.Result {
	acc := hook.NewAllow()

	for _, reg := range r.chains[event.Type] {
		h := reg.handler
		matched := r.safeMatches(h, event)
		if !matched {
			continue
		}
		acc.HandlersMatched = append(acc.HandlersMatched, h.Identifier())

		res, err := r.safeHandle(h, event)
		if err != nil {
			r.logger.Warn("handler failed, treating as allow",
				logging.String(logging.FieldHandlerID, h.Identifier()),
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Error(err))
			acc.AppendContext(fmt.Sprintf("policy handler %s failed and was skipped", h.Identifier()))
			continue
		}
		acc.HandlersExecuted = append(acc.HandlersExecuted, h.Identifier())
		acc.AppendContext(res.Context...)

		if h.Terminal() {
			acc.Decision = res.Decision
			if !acc.Decision.Valid() {
				acc.Decision = hook.DecisionAllow
			}
			acc.Reason = res.Reason
			acc.Guidance = res.Guidance
			acc.TerminatedBy = h.Identifier()
			return acc
		}
		if res.Reason != "" {
			acc.AppendContext(res.Reason)
		}
		if res.Guidance != "" && acc.Guidance == "" {
			acc.Guidance = res.Guidance
		}
	}
	return acc
}

// safeMatches evaluates the predicate; a panic or error counts as non-match.
func (r *Router) safeMatches(h Handler, event hook.Event) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("handler predicate panicked, treating as non-match",
				logging.String(logging.FieldHandlerID, h.Identifier()),
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Any("panic", rec))
			matched = false
		}
	}()
	ok, err := h.Matches(event)
	if err != nil {
		r.logger.Warn("handler predicate failed, treating as non-match",
			logging.String(logging.FieldHandlerID, h.Identifier()),
			logging.String(logging.FieldEventType, string(event.Type)),
			logging.Error(err))
		return false
	}
	return ok
}

func (r *Router) safeHandle(h Handler, event hook.Event) (res hook.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = hook.Result{}
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h.Handle(event)
}

// Handlers returns registration metadata sorted the way chains execute.
func (r *Router) Handlers() []Info {
	eventTypes := make([]hook.EventType, 0, len(r.chains))
	for eventType := range r.chains {
		eventTypes = append(eventTypes, eventType)
	}
	sort.Slice(eventTypes, func(i, j int) bool { return eventTypes[i] < eventTypes[j] })

	var infos []Info
	for _, eventType := range eventTypes {
		for _, reg := range r.chains[eventType] {
			infos = append(infos, Info{
				Event:    string(eventType),
				ID:       reg.handler.Identifier(),
				Priority: reg.handler.Priority(),
				Terminal: reg.handler.Terminal(),
			})
		}
	}
	return infos
}

// HandlerCounts returns the number of registered handlers per event type.
func (r *Router) HandlerCounts() map[string]int {
	counts := make(map[string]int, len(r.chains))
	for eventType, chain := range r.chains {
		counts[string(eventType)] = len(chain)
	}
	return counts
}
