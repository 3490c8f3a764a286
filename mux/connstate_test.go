package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainEvents(sink *eventSink) []EventKind {
	var kinds []EventKind
	for {
		e, ok := sink.Poll()
		if !ok {
			return kinds
		}
		kinds = append(kinds, e.Kind)
	}
}

func TestStateMachineFullCycleEmitsEachTransitionOnce(t *testing.T) {
	sink := newEventSink()
	m := newStateMachine(sink)
	require.Equal(t, StateStopped, m.current())

	require.True(t, m.set(StateStarting))
	require.True(t, m.set(StateStarted))
	require.True(t, m.set(StateStopping))
	require.True(t, m.set(StateStopped))

	assert.Equal(t, []EventKind{
		EventLocalStarting,
		EventLocalStarted,
		EventLocalStopping,
		EventLocalStopped,
	}, drainEvents(sink))
}

func TestStateMachineSameStateIsNoOp(t *testing.T) {
	sink := newEventSink()
	m := newStateMachine(sink)

	require.True(t, m.set(StateStarting))
	drainEvents(sink)

	assert.False(t, m.set(StateStarting))
	assert.Equal(t, StateStarting, m.current())
	assert.Equal(t, 0, sink.Len(), "repeated set must not duplicate the event")
}

func TestStateMachineRefusesIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		walk []ConnectionState
		next ConnectionState
	}{
		{name: "stopped cannot start directly", walk: nil, next: StateStarted},
		{name: "stopped cannot stop", walk: nil, next: StateStopping},
		{name: "starting cannot finish to stopped", walk: []ConnectionState{StateStarting}, next: StateStopped},
		{name: "started cannot restart", walk: []ConnectionState{StateStarting, StateStarted}, next: StateStarting},
		{name: "stopping cannot resume", walk: []ConnectionState{StateStarting, StateStarted, StateStopping}, next: StateStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newEventSink()
			m := newStateMachine(sink)
			for _, s := range tt.walk {
				require.True(t, m.set(s))
			}
			drainEvents(sink)

			before := m.current()
			assert.False(t, m.set(tt.next))
			assert.Equal(t, before, m.current())
			assert.Equal(t, 0, sink.Len())
		})
	}
}

func TestStateMachineAbortedStartupShortcut(t *testing.T) {
	sink := newEventSink()
	m := newStateMachine(sink)

	// Bind failure path: Starting drops straight into teardown without
	// ever reaching Started.
	require.True(t, m.set(StateStarting))
	require.True(t, m.set(StateStopping))
	require.True(t, m.set(StateStopped))

	assert.Equal(t, []EventKind{
		EventLocalStarting,
		EventLocalStopping,
		EventLocalStopped,
	}, drainEvents(sink))
}
