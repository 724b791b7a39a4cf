package zklogin

// State is the position of a session in the login flow
type State string

const (
	StateUnauthenticated  State = "UNAUTHENTICATED"
	StateAwaitingProvider State = "AWAITING_PROVIDER"
	StateAwaitingToken    State = "AWAITING_TOKEN"
	StateCorrelated       State = "CORRELATED"
	StateAwaitingProof    State = "AWAITING_PROOF"
	StateSignable         State = "SIGNABLE"
	StateSubmitting       State = "SUBMITTING"
	StateFinalized        State = "FINALIZED"
	StateFailed           State = "FAILED"
)

var transitions = map[State][]State{
	StateUnauthenticated:  {StateAwaitingProvider},
	StateAwaitingProvider: {StateAwaitingToken},
	StateAwaitingToken:    {StateAwaitingToken, StateCorrelated},
	StateCorrelated:       {StateAwaitingProof},
	StateAwaitingProof:    {StateSignable},
	StateSignable:         {StateAwaitingProof, StateSubmitting},
	StateSubmitting:       {StateFinalized},
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Failed is reachable from every non-terminal state.
func (s State) CanTransitionTo(next State) bool {
	if next == StateFailed {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further step is possible without a new Start
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

func (s State) String() string {
	return string(s)
}

// parseState maps a persisted value back to a State
func parseState(v string) (State, bool) {
	s := State(v)
	switch s {
	case StateUnauthenticated, StateAwaitingProvider, StateAwaitingToken, StateCorrelated,
		StateAwaitingProof, StateSignable, StateSubmitting, StateFinalized, StateFailed:
		return s, true
	}
	return "", false
}
