package hook

// Decision is the enumerated dispatch outcome returned to the caller.
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionDeny     Decision = "deny"
	DecisionAsk      Decision = "ask"
	DecisionContinue Decision = "continue"
)

// Valid reports whether the decision is one of the enumerated outcomes.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionDeny, DecisionAsk, DecisionContinue:
		return true
	}
	return false
}

// Blocking reports whether the decision prevents the gated operation.
func (d Decision) Blocking() bool {
	return d == DecisionDeny || d == DecisionAsk
}

// Result is the merged outcome of one dispatch: exactly one per event.
type Result struct {
	Decision         Decision
	Reason           string
	Context          []string
	Guidance         string
	HandlersMatched  []string
	HandlersExecuted []string
	TerminatedBy     string
}

// NewAllow returns the accumulator a dispatch starts from.
func NewAllow() Result {
	return Result{Decision: DecisionAllow}
}

// AppendContext appends advisory lines, preserving accumulation order.
func (r *Result) AppendContext(lines ...string) {
	for _, line := range lines {
		if line == "" {
			continue
		}
		r.Context = append(r.Context, line)
	}
}
