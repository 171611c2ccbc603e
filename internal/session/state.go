package session

// State represents the lifecycle state of a monitored session. The raw
// values match the wire tokens emitted by shell hooks.
type State string

const (
	StateWorking          State = "WORKING"
	StateAwaitingApproval State = "AWAITING_APPROVAL"
	StateCompleted        State = "COMPLETED"
	StateError            State = "ERROR"
	StateIdle             State = "IDLE"
)

// ParseState converts a wire token into a State.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateWorking, StateAwaitingApproval, StateCompleted, StateError, StateIdle:
		return State(s), true
	default:
		return "", false
	}
}

// DisplayName returns a human-readable name for the state.
func (s State) DisplayName() string {
	switch s {
	case StateWorking:
		return "Working"
	case StateAwaitingApproval:
		return "Waiting for approval"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	case StateIdle:
		return "Idle"
	default:
		return string(s)
	}
}

// NeedsAttention reports whether the state should surface to the user.
func (s State) NeedsAttention() bool {
	switch s {
	case StateAwaitingApproval, StateCompleted, StateError:
		return true
	default:
		return false
	}
}

// Terminal reports whether the session is past active work. Idle counts:
// it is a soft completion signal, not an active state, for cleanup and
// filtering purposes.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateError, StateIdle:
		return true
	default:
		return false
	}
}

// OverallState summarizes all sessions for the presentation layer.
type OverallState string

const (
	OverallDisconnected OverallState = "disconnected"
	OverallPaused       OverallState = "paused"
	OverallIdle         OverallState = "idle"
	OverallWorking      OverallState = "working"
	OverallAttention    OverallState = "attention"
)
