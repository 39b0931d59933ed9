package session

// State is the lifecycle state of one voice-coaching session.
// Transitions are one-directional: a session, once started, never re-preloads
// context, and Closed is terminal.
type State int32

const (
	StateCreated State = iota
	StateContextLoading
	StateReady
	StateActive
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateContextLoading:
		return "context_loading"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
