package mux

// ConnectionID is the driver-internal identity of one peer link. Sockets
// never hand it to applications; the server registry mints its own
// generation-tagged ConnectionHandle instead.
type ConnectionID uint64

// Pipeline identifies a driver-level delivery path implementing one
// channel's guarantees.
type Pipeline uint8

// DriverEventKind classifies events reported by PollEvent.
type DriverEventKind uint8

const (
	// DriverEventEmpty means no event was pending.
	DriverEventEmpty DriverEventKind = iota
	// DriverEventConnect reports a link that became established.
	DriverEventConnect
	// DriverEventDisconnect reports a link that went away.
	DriverEventDisconnect
	// DriverEventData carries one received packet.
	DriverEventData
)

// DriverEvent is one non-blocking poll result.
type DriverEvent struct {
	Kind     DriverEventKind
	Conn     ConnectionID
	Pipeline Pipeline
	Data     []byte
}

// SendWriter is a bounded staging buffer for one physical send, produced
// by BeginSend and committed by EndSend.
type SendWriter struct {
	Conn     ConnectionID
	Pipeline Pipeline

	buf []byte
	n   int
}

// NewSendWriter creates a writer over a driver-owned buffer. Drivers call
// this from BeginSend.
func NewSendWriter(conn ConnectionID, pipeline Pipeline, buf []byte) *SendWriter {
	return &SendWriter{Conn: conn, Pipeline: pipeline, buf: buf}
}

// Available returns the unwritten remainder of the staging buffer.
func (w *SendWriter) Available() []byte {
	return w.buf[w.n:]
}

// Advance marks n more bytes as written.
func (w *SendWriter) Advance(n int) {
	w.n += n
}

// Written returns the committed byte count so far.
func (w *SendWriter) Written() int {
	return w.n
}

// Payload returns the written prefix. Drivers read this in EndSend.
func (w *SendWriter) Payload() []byte {
	return w.buf[:w.n]
}

// Driver is the underlying packet transport the core sits on. All calls
// are non-blocking; reliability, congestion control, and encryption are
// the driver's business, not the core's.
type Driver interface {
	// Bind attaches the driver to a local endpoint for listening.
	Bind(endpoint string) error

	// Connect starts establishing a link to a remote endpoint. Completion
	// is reported later as a DriverEventConnect.
	Connect(endpoint string) (ConnectionID, error)

	// Accept returns the next incoming link, if any.
	Accept() (ConnectionID, bool)

	// Disconnect tears a link down. Safe on unknown IDs.
	Disconnect(conn ConnectionID)

	// PollEvent returns the next pending event or a DriverEventEmpty.
	PollEvent() DriverEvent

	// BeginSend stages a physical send on a pipeline. The writer's
	// capacity is the pipeline's packet ceiling minus header overhead.
	BeginSend(pipeline Pipeline, conn ConnectionID) (*SendWriter, error)

	// EndSend commits a staged send, returning the payload bytes queued.
	EndSend(w *SendWriter) (int, error)

	// PipelineFor maps a channel onto the pipeline implementing it.
	PipelineFor(c Channel) Pipeline

	// MaxHeaderSize returns the driver's own per-packet overhead on a
	// pipeline.
	MaxHeaderSize(pipeline Pipeline) int

	// MaxPayloadSize returns the usable packet capacity on a pipeline.
	MaxPayloadSize(pipeline Pipeline) int

	// IsValid reports observed liveness of a link, letting the registry
	// sweep entries whose driver resource silently died.
	IsValid(conn ConnectionID) bool
}
