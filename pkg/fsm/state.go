package fsm

// State is the controller's coarse operating state, as observed by the
// dispatcher's permission gate and the shutdown quiescence check.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateNotDC
	StatePolicyEngine
	StateTransitionEngine
	StateTerminating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateNotDC:
		return "not-dc"
	case StatePolicyEngine:
		return "policy-engine"
	case StateTransitionEngine:
		return "transition-engine"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExecutingAllowed reports whether ordinary verb dispatch is permitted
// in this state (§4.6: "typically: not-DC, policy-engine, or
// transition-engine").
func (s State) ExecutingAllowed() bool {
	switch s {
	case StateNotDC, StatePolicyEngine, StateTransitionEngine:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the controller has been told to exit
// regardless of outstanding work (§4.9 step 5).
func (s State) IsTerminal() bool {
	return s == StateTerminating || s == StateStopped
}
