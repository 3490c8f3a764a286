package mux

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lcx/linkmux/plugin"
)

// Loopback pipelines: one with byte-stream semantics for the reliable
// channel, one preserving packet boundaries for the unreliable channel.
const (
	LoopbackPipelineStream   Pipeline = 0
	LoopbackPipelineDatagram Pipeline = 1
)

const (
	_loopbackHeaderSize       = 4
	_loopbackDefaultMaxPacket = 1400
)

// LoopbackNetwork connects loopback drivers by endpoint name inside one
// process. Deterministic and lossless; its purpose is development and
// tests, where the real packet driver would only add noise.
type LoopbackNetwork struct {
	mu        sync.Mutex
	endpoints map[string]*LoopbackDriver
}

// NewLoopbackNetwork creates an empty in-process network.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{endpoints: make(map[string]*LoopbackDriver)}
}

var _defaultLoopbackNetwork = NewLoopbackNetwork()

// DefaultLoopbackNetwork returns the network plugin-created drivers join.
func DefaultLoopbackNetwork() *LoopbackNetwork {
	return _defaultLoopbackNetwork
}

func (n *LoopbackNetwork) bind(endpoint string, d *LoopbackDriver) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.endpoints[endpoint]; exists {
		return fmt.Errorf("endpoint %s already bound", endpoint)
	}
	n.endpoints[endpoint] = d
	return nil
}

func (n *LoopbackNetwork) lookup(endpoint string) (*LoopbackDriver, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.endpoints[endpoint]
	return d, ok
}

func (n *LoopbackNetwork) unbind(endpoint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, endpoint)
}

type loopbackConn struct {
	id         ConnectionID
	peerDriver *LoopbackDriver
	peerConn   ConnectionID
	live       bool
}

// LoopbackDriver is the in-memory Driver implementation. One instance is
// one network endpoint; links pair a connection on each endpoint and move
// packets by appending to the peer's event queue.
type LoopbackDriver struct {
	network   *LoopbackNetwork
	endpoint  string
	maxPacket int

	nextConn ConnectionID
	conns    map[ConnectionID]*loopbackConn

	pendingAccepts []ConnectionID
	events         []DriverEvent
}

// NewLoopbackDriver creates a driver on the given network.
func NewLoopbackDriver(network *LoopbackNetwork, maxPacketSize int) *LoopbackDriver {
	if network == nil {
		network = DefaultLoopbackNetwork()
	}
	if maxPacketSize <= _loopbackHeaderSize {
		maxPacketSize = _loopbackDefaultMaxPacket
	}
	return &LoopbackDriver{
		network:   network,
		maxPacket: maxPacketSize,
		conns:     make(map[ConnectionID]*loopbackConn),
	}
}

// FactoryName implements plugin.Plugin.
func (d *LoopbackDriver) FactoryName() string { return "loopback" }

// Bind implements Driver.
func (d *LoopbackDriver) Bind(endpoint string) error {
	if err := d.network.bind(endpoint, d); err != nil {
		return err
	}
	d.endpoint = endpoint
	return nil
}

// Close unbinds the driver from its network endpoint.
func (d *LoopbackDriver) Close() {
	if d.endpoint != "" {
		d.network.unbind(d.endpoint)
		d.endpoint = ""
	}
}

// Connect implements Driver. The link is usable immediately; the connect
// event is queued for the next poll.
func (d *LoopbackDriver) Connect(endpoint string) (ConnectionID, error) {
	peer, ok := d.network.lookup(endpoint)
	if !ok {
		return 0, fmt.Errorf("endpoint %s not bound", endpoint)
	}

	local := d.newConn()
	remote := peer.newConn()
	d.conns[local].peerDriver = peer
	d.conns[local].peerConn = remote
	peer.conns[remote].peerDriver = d
	peer.conns[remote].peerConn = local

	peer.pendingAccepts = append(peer.pendingAccepts, remote)
	d.events = append(d.events, DriverEvent{Kind: DriverEventConnect, Conn: local})
	return local, nil
}

// Accept implements Driver.
func (d *LoopbackDriver) Accept() (ConnectionID, bool) {
	if len(d.pendingAccepts) == 0 {
		return 0, false
	}
	conn := d.pendingAccepts[0]
	d.pendingAccepts = d.pendingAccepts[1:]
	return conn, true
}

// Disconnect implements Driver.
func (d *LoopbackDriver) Disconnect(conn ConnectionID) {
	c, ok := d.conns[conn]
	if !ok || !c.live {
		return
	}
	c.live = false

	if peer, pok := c.peerDriver.conns[c.peerConn]; pok && peer.live {
		peer.live = false
		c.peerDriver.events = append(c.peerDriver.events,
			DriverEvent{Kind: DriverEventDisconnect, Conn: c.peerConn})
	}
}

// PollEvent implements Driver.
func (d *LoopbackDriver) PollEvent() DriverEvent {
	if len(d.events) == 0 {
		return DriverEvent{Kind: DriverEventEmpty}
	}
	ev := d.events[0]
	d.events = d.events[1:]
	return ev
}

// BeginSend implements Driver.
func (d *LoopbackDriver) BeginSend(pipeline Pipeline, conn ConnectionID) (*SendWriter, error) {
	c, ok := d.conns[conn]
	if !ok || !c.live {
		return nil, errors.New("loopback: connection is not live")
	}
	return NewSendWriter(conn, pipeline, make([]byte, d.MaxPayloadSize(pipeline))), nil
}

// EndSend implements Driver.
func (d *LoopbackDriver) EndSend(w *SendWriter) (int, error) {
	if w.Written() == 0 {
		return 0, nil
	}
	c, ok := d.conns[w.Conn]
	if !ok || !c.live {
		return 0, errors.New("loopback: connection is not live")
	}

	packet := make([]byte, w.Written())
	copy(packet, w.Payload())
	c.peerDriver.events = append(c.peerDriver.events, DriverEvent{
		Kind:     DriverEventData,
		Conn:     c.peerConn,
		Pipeline: w.Pipeline,
		Data:     packet,
	})
	return w.Written(), nil
}

// PipelineFor implements Driver.
func (d *LoopbackDriver) PipelineFor(c Channel) Pipeline {
	if c.Caps().StreamSemantics {
		return LoopbackPipelineStream
	}
	return LoopbackPipelineDatagram
}

// MaxHeaderSize implements Driver.
func (d *LoopbackDriver) MaxHeaderSize(pipeline Pipeline) int {
	return _loopbackHeaderSize
}

// MaxPayloadSize implements Driver.
func (d *LoopbackDriver) MaxPayloadSize(pipeline Pipeline) int {
	return d.maxPacket - d.MaxHeaderSize(pipeline)
}

// IsValid implements Driver.
func (d *LoopbackDriver) IsValid(conn ConnectionID) bool {
	c, ok := d.conns[conn]
	return ok && c.live
}

func (d *LoopbackDriver) newConn() ConnectionID {
	d.nextConn++
	d.conns[d.nextConn] = &loopbackConn{id: d.nextConn, live: true}
	return d.nextConn
}

// loopbackFactory builds loopback drivers from plugin configuration.
type loopbackFactory struct{}

// Type implements plugin.Factory.
func (f *loopbackFactory) Type() plugin.Type { return plugin.Driver }

// Name implements plugin.Factory.
func (f *loopbackFactory) Name() string { return "loopback" }

// Setup implements plugin.Factory.
func (f *loopbackFactory) Setup(v map[string]any) (plugin.Plugin, error) {
	maxPacket := _loopbackDefaultMaxPacket
	if raw, ok := v["maxPacketSize"]; ok {
		switch n := raw.(type) {
		case int:
			maxPacket = n
		case float64:
			maxPacket = int(n)
		default:
			return nil, fmt.Errorf("maxPacketSize has invalid type %T", raw)
		}
	}
	return NewLoopbackDriver(DefaultLoopbackNetwork(), maxPacket), nil
}

// Destroy implements plugin.Factory.
func (f *loopbackFactory) Destroy(p plugin.Plugin, _ any) error {
	d, ok := p.(*LoopbackDriver)
	if !ok {
		return errors.New("not a loopback driver")
	}
	d.Close()
	return nil
}

// Reload implements plugin.Factory.
func (f *loopbackFactory) Reload(p plugin.Plugin, v map[string]any) error {
	return errors.New("loopback driver does not support reload")
}

// CanDelete implements plugin.Factory.
func (f *loopbackFactory) CanDelete(p plugin.Plugin) bool {
	d, ok := p.(*LoopbackDriver)
	if !ok {
		return true
	}
	for _, c := range d.conns {
		if c.live {
			return false
		}
	}
	return true
}

func init() {
	plugin.RegisterPlugin(&loopbackFactory{})
}

// DriverFromPlugin resolves a configured driver instance from the plugin
// registry. Factories register in their package init; instances exist
// after plugin.InitPlugins or plugin.SetupPlugins has run.
func DriverFromPlugin(factoryName, instanceName string) (Driver, error) {
	ins, err := plugin.GetPlugin(string(plugin.Driver), factoryName, instanceName)
	if err != nil {
		return nil, err
	}
	d, ok := ins.(Driver)
	if !ok {
		return nil, fmt.Errorf("plugin [%s/%s] does not implement Driver", factoryName, instanceName)
	}
	return d, nil
}
