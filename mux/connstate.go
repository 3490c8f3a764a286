package mux

// ConnectionState is the lifecycle position of a socket or of one server
// side connection.
type ConnectionState uint8

const (
	// StateStopped is the initial and terminal state.
	StateStopped ConnectionState = iota
	// StateStarting means bind/connect is in flight.
	StateStarting
	// StateStarted means traffic may flow.
	StateStarted
	// StateStopping means teardown is in progress.
	StateStopping
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateStarted:
		return "Started"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// stateMachine tracks one lifecycle and reports each transition exactly
// once to the owner's event sink. Setting the current state again is a
// no-op with no event; transitions that leave the legal cycle
// Stopped -> Starting -> Started -> Stopping -> Stopped (with the
// Starting -> Stopping shortcut for aborted startups) are refused.
type stateMachine struct {
	state ConnectionState
	sink  *eventSink
}

func newStateMachine(sink *eventSink) *stateMachine {
	return &stateMachine{state: StateStopped, sink: sink}
}

func (m *stateMachine) current() ConnectionState {
	return m.state
}

func legalTransition(from, to ConnectionState) bool {
	switch from {
	case StateStopped:
		return to == StateStarting
	case StateStarting:
		return to == StateStarted || to == StateStopping
	case StateStarted:
		return to == StateStopping
	case StateStopping:
		return to == StateStopped
	default:
		return false
	}
}

// set moves to next, emitting one local lifecycle event. Returns false
// without emitting when next equals the current state or the transition
// is illegal.
func (m *stateMachine) set(next ConnectionState) bool {
	if next == m.state {
		return false
	}
	if !legalTransition(m.state, next) {
		return false
	}

	m.state = next
	m.sink.Emit(Event{Kind: localEventKind(next)})
	return true
}

func localEventKind(s ConnectionState) EventKind {
	switch s {
	case StateStarting:
		return EventLocalStarting
	case StateStarted:
		return EventLocalStarted
	case StateStopping:
		return EventLocalStopping
	default:
		return EventLocalStopped
	}
}
