package mux

import (
	"errors"
	"fmt"

	"github.com/lcx/linkmux/config"
	"github.com/lcx/linkmux/log"
	"github.com/lcx/linkmux/metrics"
)

// ClientSocket owns exactly one connection to a server. Its lifecycle
// mirrors the server's remote view: Starting while the driver link is in
// flight, Started once the connect event arrives.
type ClientSocket struct {
	cfg     *SocketCfg
	driver  Driver
	machine *stateMachine

	conn      ConnectionID
	connLive  bool
	sendQueue [channelCount]*SendQueue
	recvQueue *ReceiveQueue

	events  *eventSink
	filters InboundFilterChain
}

// NewClientSocket creates a client socket over driver with an explicit
// configuration.
func NewClientSocket(driver Driver, cfg *SocketCfg) (*ClientSocket, error) {
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
	c := &ClientSocket{
		cfg:     cfg,
		driver:  driver,
		machine: newStateMachine(sink),
		events:  sink,
	}
	c.filters = append(c.filters, MaxSizeFilter(cfg.MaxMessageSize))
	return c, nil
}

// NewClientSocketWithConfigManager creates a client socket whose "socket"
// configuration comes from the manager.
func NewClientSocketWithConfigManager(driver Driver, configManager config.ConfigManager) (*ClientSocket, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}

	cfg := &SocketCfg{}
	if err := configManager.LoadConfig("socket", cfg); err != nil {
		return nil, fmt.Errorf("failed to load socket config: %w", err)
	}
	return NewClientSocket(driver, cfg)
}

// State returns the socket's lifecycle state.
func (c *ClientSocket) State() ConnectionState {
	return c.machine.current()
}

// RegisterInboundFilter appends a filter ahead of message delivery.
func (c *ClientSocket) RegisterInboundFilter(f InboundFilter) {
	c.filters = append(c.filters, f)
}

// Connect starts establishing the link to endpoint. The socket reaches
// Started once the driver reports the connect event on a later tick.
// Refused when the socket is not Stopped.
func (c *ClientSocket) Connect(endpoint string) error {
	metrics.IncrCounterWithGroup("mux", "socket_start_total", 1)

	if !c.machine.set(StateStarting) {
		return ErrSocketNotStopped
	}

	conn, err := c.driver.Connect(endpoint)
	if err != nil {
		metrics.IncrCounterWithDimGroup("mux", "socket_start_error_total", 1,
			map[string]string{"error_type": "connect"})
		c.machine.set(StateStopping)
		c.machine.set(StateStopped)
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}

	c.conn = conn
	c.connLive = true
	log.Info().Str("tag", c.cfg.Tag).Str("endpoint", endpoint).Msg("client socket connecting")
	return nil
}

// Stop tears the connection down synchronously; queues are disposed
// before the machine reaches Stopped. Refused when already Stopped or
// Stopping.
func (c *ClientSocket) Stop() error {
	state := c.machine.current()
	if state == StateStopped || state == StateStopping {
		return ErrSocketNotStarted
	}

	c.machine.set(StateStopping)
	if c.connLive {
		c.driver.Disconnect(c.conn)
	}
	c.dispose()
	c.machine.set(StateStopped)
	log.Info().Str("tag", c.cfg.Tag).Msg("client socket stopped")
	return nil
}

// Send queues one message on a channel. Silently refused unless the
// socket is Started; a channel outside the taxonomy or a capacity
// rejection is reported.
func (c *ClientSocket) Send(channel Channel, payload []byte) error {
	if channel >= channelCount {
		return ErrInvalidChannel
	}
	if c.machine.current() != StateStarted {
		return nil
	}

	q := c.sendQueue[channel]
	if q == nil {
		q = NewSendQueue(c.cfg.sendQueueCapacity())
		c.sendQueue[channel] = q
	}
	if !q.Push(payload) {
		metrics.IncrCounterWithDimGroup("mux", "push_reject_total", 1,
			map[string]string{"channel": channel.String()})
		return ErrCapacityExceeded
	}
	metrics.IncrCounterWithGroup("mux", "push_total", 1)
	return nil
}

// IterateIncoming runs one inbound tick.
func (c *ClientSocket) IterateIncoming() {
	state := c.machine.current()
	if state != StateStarting && state != StateStarted {
		return
	}

	for {
		ev := c.driver.PollEvent()
		switch ev.Kind {
		case DriverEventEmpty:
			return
		case DriverEventConnect:
			if ev.Conn == c.conn {
				c.machine.set(StateStarted)
			}
		case DriverEventData:
			if c.machine.current() == StateStarted && ev.Conn == c.conn {
				c.routeData(ev)
				if c.machine.current() != StateStarted {
					return
				}
			}
		case DriverEventDisconnect:
			if ev.Conn != c.conn {
				continue
			}
			// Remote closed the link; run the local teardown cycle.
			c.machine.set(StateStopping)
			c.dispose()
			c.machine.set(StateStopped)
			return
		}
	}
}

// IterateOutgoing runs one outbound tick.
func (c *ClientSocket) IterateOutgoing() {
	if c.machine.current() != StateStarted {
		return
	}

	for channel := Channel(0); channel < channelCount; channel++ {
		q := c.sendQueue[channel]
		if q == nil || q.IsEmpty() {
			continue
		}
		flushQueue(c.driver, c.conn, channel, q)
	}
}

// PollEvent returns the next application event from this socket.
func (c *ClientSocket) PollEvent() (Event, bool) {
	return c.events.Poll()
}

// DispatchEvents drains all pending application events into listener and
// returns the number delivered.
func (c *ClientSocket) DispatchEvents(listener EventListener) int {
	delivered := 0
	for {
		e, ok := c.events.Poll()
		if !ok {
			return delivered
		}
		listener.OnLinkEvent(e)
		delivered++
	}
}

func (c *ClientSocket) routeData(ev DriverEvent) {
	channel, ok := channelForPipeline(c.driver, ev.Pipeline)
	if !ok {
		return
	}

	if channel.Caps().StreamSemantics {
		if c.recvQueue == nil {
			c.recvQueue = NewReceiveQueueWithLimit(c.cfg.MaxMessageSize)
		}
		if err := c.recvQueue.Feed(ev.Data); err != nil {
			// The server violated the wire protocol; tear the link down.
			log.Warn().Str("tag", c.cfg.Tag).Err(err).Msg("connection dropped on invalid inbound frame")
			c.machine.set(StateStopping)
			c.driver.Disconnect(c.conn)
			c.dispose()
			c.machine.set(StateStopped)
			return
		}
		for {
			msg, popped := c.recvQueue.PopMessage()
			if !popped {
				return
			}
			c.deliver(channel, msg)
		}
	}

	reader := NewPacketReader(ev.Data)
	for {
		msg, next := reader.NextMessage()
		if !next {
			return
		}
		c.deliver(channel, msg)
	}
}

func (c *ClientSocket) deliver(channel Channel, payload []byte) {
	d := &Delivery{Channel: channel, Payload: payload}
	err := c.filters.Handle(d, func(d *Delivery) error {
		c.events.Emit(Event{Kind: EventMessage, Channel: d.Channel, Payload: d.Payload})
		return nil
	})
	if err != nil {
		metrics.IncrCounterWithDimGroup("mux", "delivery_dropped_total", 1,
			map[string]string{"channel": channel.String()})
		log.Debug().Err(err).Msg("inbound delivery dropped")
	}
}

func (c *ClientSocket) dispose() {
	for channel := Channel(0); channel < channelCount; channel++ {
		c.sendQueue[channel] = nil
	}
	c.recvQueue = nil
	c.connLive = false
}
