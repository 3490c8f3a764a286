package mux

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lcx/linkmux/config"
	"github.com/lcx/linkmux/log"
	"github.com/lcx/linkmux/metrics"
)

// SendTarget keys one outgoing queue: which connection, which channel.
type SendTarget struct {
	Conn    ConnectionHandle
	Channel Channel
}

var (
	// ErrCapacityExceeded means a message could not be queued even at the
	// send queue's maximum capacity. The queue is unchanged; the caller
	// may retry after the next flush.
	ErrCapacityExceeded = errors.New("send queue capacity exceeded")

	// ErrSocketNotStopped is returned by Start on a socket that is not in
	// the Stopped state.
	ErrSocketNotStopped = errors.New("socket is not stopped")

	// ErrSocketNotStarted is returned by Stop on a socket that is already
	// stopped or stopping.
	ErrSocketNotStarted = errors.New("socket is not started")

	// ErrInvalidChannel is returned by Send for a channel outside the
	// known taxonomy. Nothing is queued.
	ErrInvalidChannel = errors.New("invalid channel")
)

// ServerSocket multiplexes up to MaxClients remote connections over one
// driver. All mutation happens on the owner's tick via IterateIncoming
// and IterateOutgoing; nothing here blocks.
type ServerSocket struct {
	// cfg is published atomically: config reloads land on the manager's
	// watch goroutine while the tick loop reads it.
	cfg      atomic.Pointer[SocketCfg]
	driver   Driver
	machine  *stateMachine
	registry *ConnectionRegistry

	sendQueues map[SendTarget]*SendQueue
	recvQueues map[ConnectionHandle]*ReceiveQueue

	events  *eventSink
	filters InboundFilterChain
	limiter *ReceiveLimiter

	handleScratch []ConnectionHandle
}

// NewServerSocket creates a server socket over driver with an explicit
// configuration.
func NewServerSocket(driver Driver, cfg *SocketCfg) (*ServerSocket, error) {
	if driver == nil {
		return nil, errors.New("driver cannot be nil")
	}
	if cfg == nil {
		cfg = defaultSocketCfg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid socket config: %w", err)
	}

	sink := newEventSink()
	s := &ServerSocket{
		driver:     driver,
		machine:    newStateMachine(sink),
		registry:   NewConnectionRegistry(cfg.MaxClients),
		sendQueues: make(map[SendTarget]*SendQueue),
		recvQueues: make(map[ConnectionHandle]*ReceiveQueue),
		events:     sink,
	}
	s.cfg.Store(cfg)

	s.filters = append(s.filters, MaxSizeFilter(cfg.MaxMessageSize))
	if cfg.RecvRateLimit > 0 {
		burst := cfg.RecvBurst
		if burst <= 0 {
			burst = cfg.RecvRateLimit
		}
		s.limiter = NewTokenRecvLimiter(cfg.RecvRateLimit, burst)
	}
	return s, nil
}

// NewServerSocketWithConfigManager creates a server socket whose "socket"
// configuration is loaded from the manager and hot-reloaded on change.
func NewServerSocketWithConfigManager(driver Driver, configManager config.ConfigManager) (*ServerSocket, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}

	cfg := &SocketCfg{}
	if err := configManager.LoadConfig("socket", cfg); err != nil {
		return nil, fmt.Errorf("failed to load socket config: %w", err)
	}

	s, err := NewServerSocket(driver, cfg)
	if err != nil {
		return nil, err
	}
	configManager.AddChangeListener(s)
	return s, nil
}

// OnConfigChanged implements config.ConfigChangeListener. Only the
// connection bound and receive limits apply live; queue sizing is fixed
// per queue at creation. The callback runs on the config manager's watch
// goroutine, so it only performs atomic publication: the registry bound
// is picked up by the next tick.
func (s *ServerSocket) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	newCfg, ok := newConfig.(*SocketCfg)
	if !ok {
		return fmt.Errorf("invalid configuration type for ServerSocket")
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid socket configuration: %w", err)
	}

	s.cfg.Store(newCfg)
	if s.limiter != nil && newCfg.RecvRateLimit > 0 {
		burst := newCfg.RecvBurst
		if burst <= 0 {
			burst = newCfg.RecvRateLimit
		}
		s.limiter.Reload(newCfg.RecvRateLimit, burst)
	}

	log.Info().Str("configName", configName).Msg("server socket configuration updated")
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (s *ServerSocket) GetConfigName() string {
	return "socket"
}

// State returns the socket's lifecycle state.
func (s *ServerSocket) State() ConnectionState {
	return s.machine.current()
}

// ConnectionCount returns the number of live remote connections.
func (s *ServerSocket) ConnectionCount() int {
	return s.registry.Count()
}

// RegisterInboundFilter appends a filter ahead of message delivery.
func (s *ServerSocket) RegisterInboundFilter(f InboundFilter) {
	s.filters = append(s.filters, f)
}

// Start binds the driver and brings the socket to Started. Refused when
// the socket is not Stopped.
func (s *ServerSocket) Start() error {
	metrics.IncrCounterWithGroup("mux", "socket_start_total", 1)

	if !s.machine.set(StateStarting) {
		return ErrSocketNotStopped
	}

	cfg := s.cfg.Load()
	if err := s.driver.Bind(cfg.Addr); err != nil {
		metrics.IncrCounterWithDimGroup("mux", "socket_start_error_total", 1,
			map[string]string{"error_type": "bind"})
		s.machine.set(StateStopping)
		s.machine.set(StateStopped)
		return fmt.Errorf("bind %s: %w", cfg.Addr, err)
	}

	s.machine.set(StateStarted)
	log.Info().Str("tag", cfg.Tag).Str("addr", cfg.Addr).Msg("server socket started")
	return nil
}

// Stop tears the socket down synchronously: every remote connection is
// disconnected and its queues disposed before the machine reaches
// Stopped. Refused when already Stopped or Stopping.
func (s *ServerSocket) Stop() error {
	state := s.machine.current()
	if state == StateStopped || state == StateStopping {
		return ErrSocketNotStarted
	}

	s.machine.set(StateStopping)

	s.handleScratch = s.registry.Handles(s.handleScratch[:0])
	for _, handle := range s.handleScratch {
		driverConn, ok := s.registry.Lookup(handle)
		if ok {
			s.driver.Disconnect(driverConn)
		}
		s.registry.Remove(handle)
		s.disposeConnection(handle)
		s.events.Emit(Event{Kind: EventRemoteStopped, Conn: handle})
	}

	s.machine.set(StateStopped)
	metrics.UpdateGaugeWithGroup("mux", "current_connections", 0)
	log.Info().Str("tag", s.cfg.Load().Tag).Msg("server socket stopped")
	return nil
}

// Send queues one message toward a connection on a channel. Messages on
// unknown handles or a non-Started socket are silently refused per the
// cancellation contract; a channel outside the taxonomy or a capacity
// rejection is reported.
func (s *ServerSocket) Send(conn ConnectionHandle, channel Channel, payload []byte) error {
	if channel >= channelCount {
		return ErrInvalidChannel
	}
	if s.machine.current() != StateStarted {
		return nil
	}
	if _, ok := s.registry.Lookup(conn); !ok {
		return nil
	}

	q := s.sendQueue(SendTarget{Conn: conn, Channel: channel})
	if !q.Push(payload) {
		metrics.IncrCounterWithDimGroup("mux", "push_reject_total", 1,
			map[string]string{"channel": channel.String()})
		return ErrCapacityExceeded
	}
	metrics.IncrCounterWithGroup("mux", "push_total", 1)
	return nil
}

// Disconnect tears down one remote connection. Unknown handles are a
// no-op.
func (s *ServerSocket) Disconnect(conn ConnectionHandle) {
	driverConn, ok := s.registry.Lookup(conn)
	if !ok {
		return
	}
	s.driver.Disconnect(driverConn)
	s.registry.Remove(conn)
	s.disposeConnection(conn)
	s.events.Emit(Event{Kind: EventRemoteStopped, Conn: conn})
	metrics.UpdateGaugeWithGroup("mux", "current_connections", metrics.Value(s.registry.Count()))
}

// IterateIncoming runs one inbound tick: accept new links, drain driver
// events, deliver completed messages, and sweep dead registry entries.
func (s *ServerSocket) IterateIncoming() {
	if s.machine.current() != StateStarted {
		return
	}

	// Reloaded bounds are applied here so registry writes stay tick-owned.
	s.registry.SetMaxClients(s.cfg.Load().MaxClients)

	s.acceptPending()
	s.drainDriverEvents()

	swept := s.registry.Sweep(s.driver.IsValid, func(handle ConnectionHandle) {
		s.disposeConnection(handle)
		s.events.Emit(Event{Kind: EventRemoteStopped, Conn: handle})
	})
	if swept > 0 {
		metrics.IncrCounterWithGroup("mux", "sweep_removed_total", metrics.Value(swept))
		metrics.UpdateGaugeWithGroup("mux", "current_connections", metrics.Value(s.registry.Count()))
	}
}

// IterateOutgoing runs one outbound tick: every non-empty queue is
// drained into driver sends until it empties or a send attempt fails.
func (s *ServerSocket) IterateOutgoing() {
	if s.machine.current() != StateStarted {
		return
	}

	s.handleScratch = s.registry.Handles(s.handleScratch[:0])
	for _, handle := range s.handleScratch {
		driverConn, ok := s.registry.Lookup(handle)
		if !ok {
			continue
		}
		for channel := Channel(0); channel < channelCount; channel++ {
			q, ok := s.sendQueues[SendTarget{Conn: handle, Channel: channel}]
			if !ok || q.IsEmpty() {
				continue
			}
			flushQueue(s.driver, driverConn, channel, q)
		}
	}
}

// PollEvent returns the next application event from this socket.
func (s *ServerSocket) PollEvent() (Event, bool) {
	return s.events.Poll()
}

// DispatchEvents drains all pending application events into listener and
// returns the number delivered.
func (s *ServerSocket) DispatchEvents(listener EventListener) int {
	delivered := 0
	for {
		e, ok := s.events.Poll()
		if !ok {
			return delivered
		}
		listener.OnLinkEvent(e)
		delivered++
	}
}

func (s *ServerSocket) acceptPending() {
	for {
		driverConn, ok := s.driver.Accept()
		if !ok {
			return
		}

		handle, result := s.registry.Accept(driverConn)
		if result == RejectedCapacity {
			// Torn down before any queue or entry exists for it.
			s.driver.Disconnect(driverConn)
			metrics.IncrCounterWithGroup("mux", "connection_rejected_total", 1)
			log.Warn().Int("maxClients", s.registry.MaxClients()).
				Msg("connection rejected at capacity")
			continue
		}

		s.events.Emit(Event{Kind: EventRemoteStarted, Conn: handle})
		metrics.IncrCounterWithGroup("mux", "connection_accepted_total", 1)
		metrics.UpdateGaugeWithGroup("mux", "current_connections", metrics.Value(s.registry.Count()))
	}
}

func (s *ServerSocket) drainDriverEvents() {
	for {
		if s.limiter != nil && !s.limiter.TryTake() {
			return
		}

		ev := s.driver.PollEvent()
		switch ev.Kind {
		case DriverEventEmpty:
			return
		case DriverEventData:
			s.routeData(ev)
		case DriverEventDisconnect:
			handle, ok := s.registry.LookupByDriver(ev.Conn)
			if !ok {
				continue
			}
			s.registry.Remove(handle)
			s.disposeConnection(handle)
			s.events.Emit(Event{Kind: EventRemoteStopped, Conn: handle})
			metrics.UpdateGaugeWithGroup("mux", "current_connections", metrics.Value(s.registry.Count()))
		case DriverEventConnect:
			// Server links surface through Accept; nothing to do here.
		}
	}
}

// routeData feeds one packet into the proper per-connection receive
// state and delivers every message it completes, in order.
func (s *ServerSocket) routeData(ev DriverEvent) {
	handle, ok := s.registry.LookupByDriver(ev.Conn)
	if !ok {
		return
	}

	channel, ok := channelForPipeline(s.driver, ev.Pipeline)
	if !ok {
		return
	}

	if channel.Caps().StreamSemantics {
		rq, ok := s.recvQueues[handle]
		if !ok {
			rq = NewReceiveQueueWithLimit(s.cfg.Load().MaxMessageSize)
			s.recvQueues[handle] = rq
		}
		if err := rq.Feed(ev.Data); err != nil {
			s.dropConnection(handle, ev.Conn, err)
			return
		}
		for {
			msg, popped := rq.PopMessage()
			if !popped {
				return
			}
			s.deliver(handle, channel, msg)
		}
	}

	reader := NewPacketReader(ev.Data)
	for {
		msg, next := reader.NextMessage()
		if !next {
			return
		}
		s.deliver(handle, channel, msg)
	}
}

func (s *ServerSocket) deliver(conn ConnectionHandle, channel Channel, payload []byte) {
	d := &Delivery{Conn: conn, Channel: channel, Payload: payload}
	err := s.filters.Handle(d, func(d *Delivery) error {
		s.events.Emit(Event{Kind: EventMessage, Conn: d.Conn, Channel: d.Channel, Payload: d.Payload})
		return nil
	})
	if err != nil {
		metrics.IncrCounterWithDimGroup("mux", "delivery_dropped_total", 1,
			map[string]string{"channel": channel.String()})
		log.Debug().Uint64("conn", uint64(conn)).Err(err).Msg("inbound delivery dropped")
	}
}

func (s *ServerSocket) sendQueue(target SendTarget) *SendQueue {
	q, ok := s.sendQueues[target]
	if !ok {
		q = NewSendQueue(s.cfg.Load().sendQueueCapacity())
		s.sendQueues[target] = q
	}
	return q
}

// dropConnection force-removes a peer that violated the wire protocol.
func (s *ServerSocket) dropConnection(handle ConnectionHandle, driverConn ConnectionID, err error) {
	s.driver.Disconnect(driverConn)
	s.registry.Remove(handle)
	s.disposeConnection(handle)
	s.events.Emit(Event{Kind: EventRemoteStopped, Conn: handle})
	metrics.IncrCounterWithGroup("mux", "connection_dropped_total", 1)
	metrics.UpdateGaugeWithGroup("mux", "current_connections", metrics.Value(s.registry.Count()))
	log.Warn().Uint64("conn", uint64(handle)).Err(err).Msg("connection dropped on invalid inbound frame")
}

// disposeConnection drops all per-connection queue state. Reached from
// disconnects, sweeps, and the socket's own stop path.
func (s *ServerSocket) disposeConnection(handle ConnectionHandle) {
	for channel := Channel(0); channel < channelCount; channel++ {
		delete(s.sendQueues, SendTarget{Conn: handle, Channel: channel})
	}
	delete(s.recvQueues, handle)
}

// channelForPipeline inverts the driver's channel-to-pipeline mapping.
func channelForPipeline(d Driver, p Pipeline) (Channel, bool) {
	for channel := Channel(0); channel < channelCount; channel++ {
		if d.PipelineFor(channel) == p {
			return channel, true
		}
	}
	return 0, false
}

// flushQueue drives one queue into physical sends until it empties or a
// send attempt fails; unsent bytes stay queued for the next tick.
func flushQueue(driver Driver, conn ConnectionID, channel Channel, q *SendQueue) {
	caps := channel.Caps()
	pipeline := driver.PipelineFor(channel)

	for !q.IsEmpty() {
		w, err := driver.BeginSend(pipeline, conn)
		if err != nil {
			metrics.IncrCounterWithDimGroup("mux", "send_failure_total", 1,
				map[string]string{"stage": "begin"})
			return
		}

		var n int
		if caps.StreamSemantics {
			n = q.FillWithBytes(w.Available())
		} else {
			n = q.FillWithMessages(w.Available())
		}
		if n == 0 {
			// Next frame is larger than this packet allows; nothing can
			// move until capacity changes.
			_, _ = driver.EndSend(w)
			return
		}
		w.Advance(n)

		if _, err := driver.EndSend(w); err != nil {
			metrics.IncrCounterWithDimGroup("mux", "send_failure_total", 1,
				map[string]string{"stage": "end"})
			return
		}
		q.Consume(n)
		metrics.IncrCounterWithGroup("mux", "bytes_flushed_total", metrics.Value(n))
	}
}
