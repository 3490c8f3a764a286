package mux

import (
	"github.com/eapache/queue"
)

// ConnectionHandle identifies one remote peer for the lifetime of its
// session. Server handles are minted by the connection registry; client
// socket events leave it zero since the peer is unambiguous.
type ConnectionHandle uint64

// InvalidConnection is the zero handle; it never refers to a live peer.
const InvalidConnection ConnectionHandle = 0

// EventKind classifies application-facing events.
type EventKind uint8

const (
	// EventLocalStarting through EventLocalStopped report the owning
	// socket's own lifecycle.
	EventLocalStarting EventKind = iota
	EventLocalStarted
	EventLocalStopping
	EventLocalStopped

	// EventRemoteStarted and EventRemoteStopped report a remote peer's
	// session on a server socket.
	EventRemoteStarted
	EventRemoteStopped

	// EventMessage carries one received application message.
	EventMessage
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventLocalStarting:
		return "LocalStarting"
	case EventLocalStarted:
		return "LocalStarted"
	case EventLocalStopping:
		return "LocalStopping"
	case EventLocalStopped:
		return "LocalStopped"
	case EventRemoteStarted:
		return "RemoteStarted"
	case EventRemoteStopped:
		return "RemoteStopped"
	case EventMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

// Event is one application-facing occurrence: a lifecycle transition or a
// received message. Payload is only set for EventMessage and is owned by
// the receiver.
type Event struct {
	Kind    EventKind
	Conn    ConnectionHandle
	Channel Channel
	Payload []byte
}

// EventListener receives events pushed during DispatchEvents.
type EventListener interface {
	OnLinkEvent(e Event)
}

// eventSink queues events between socket iteration and application
// consumption. Single-owner, mutated only on the socket's tick.
type eventSink struct {
	pending *queue.Queue
}

func newEventSink() *eventSink {
	return &eventSink{pending: queue.New()}
}

func (s *eventSink) Emit(e Event) {
	s.pending.Add(e)
}

func (s *eventSink) Poll() (Event, bool) {
	if s.pending.Length() == 0 {
		return Event{}, false
	}
	e, _ := s.pending.Remove().(Event)
	return e, true
}

func (s *eventSink) Len() int {
	return s.pending.Length()
}
