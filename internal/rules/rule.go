package rules

import "hookd/internal/hook"

// rule is the concrete handler shape shared by all built-ins: identity plus
// a predicate and an effect closure.
type rule struct {
	id       string
	priority int
	terminal bool
	matches  func(hook.Event) (bool, error)
	handle   func(hook.Event) (hook.Result, error)
}

func (r *rule) Identifier() string { return r.id }
func (r *rule) Priority() int      { return r.priority }
func (r *rule) Terminal() bool     { return r.terminal }

func (r *rule) Matches(event hook.Event) (bool, error) {
	if r.matches == nil {
		return false, nil
	}
	return r.matches(event)
}

func (r *rule) Handle(event hook.Event) (hook.Result, error) {
	if r.handle == nil {
		return hook.NewAllow(), nil
	}
	return r.handle(event)
}
