package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/linkmux/plugin"
)

func TestLoopbackBindRefusesDuplicateEndpoint(t *testing.T) {
	network := NewLoopbackNetwork()
	a := NewLoopbackDriver(network, 256)
	b := NewLoopbackDriver(network, 256)

	require.NoError(t, a.Bind("svc"))
	assert.Error(t, b.Bind("svc"))

	a.Close()
	assert.NoError(t, b.Bind("svc"), "endpoint frees on close")
}

func TestLoopbackConnectToUnboundEndpointFails(t *testing.T) {
	d := NewLoopbackDriver(NewLoopbackNetwork(), 256)
	_, err := d.Connect("nowhere")
	assert.Error(t, err)
}

func TestLoopbackConnectDeliversAcceptAndConnectEvent(t *testing.T) {
	network := NewLoopbackNetwork()
	server := NewLoopbackDriver(network, 256)
	client := NewLoopbackDriver(network, 256)
	require.NoError(t, server.Bind("svc"))

	conn, err := client.Connect("svc")
	require.NoError(t, err)
	assert.True(t, client.IsValid(conn))

	ev := client.PollEvent()
	assert.Equal(t, DriverEventConnect, ev.Kind)
	assert.Equal(t, conn, ev.Conn)

	remote, ok := server.Accept()
	require.True(t, ok)
	assert.True(t, server.IsValid(remote))
	_, ok = server.Accept()
	assert.False(t, ok, "accept queue drained")
}

func TestLoopbackSendRoundTrip(t *testing.T) {
	network := NewLoopbackNetwork()
	server := NewLoopbackDriver(network, 256)
	client := NewLoopbackDriver(network, 256)
	require.NoError(t, server.Bind("svc"))
	conn, err := client.Connect("svc")
	require.NoError(t, err)
	remote, _ := server.Accept()

	w, err := client.BeginSend(LoopbackPipelineDatagram, conn)
	require.NoError(t, err)
	require.Equal(t, client.MaxPayloadSize(LoopbackPipelineDatagram), len(w.Available()))
	n := copy(w.Available(), "payload")
	w.Advance(n)
	sent, err := client.EndSend(w)
	require.NoError(t, err)
	assert.Equal(t, n, sent)

	ev := server.PollEvent()
	assert.Equal(t, DriverEventData, ev.Kind)
	assert.Equal(t, remote, ev.Conn)
	assert.Equal(t, LoopbackPipelineDatagram, ev.Pipeline)
	assert.Equal(t, []byte("payload"), ev.Data)
}

func TestLoopbackDisconnectReachesPeer(t *testing.T) {
	network := NewLoopbackNetwork()
	server := NewLoopbackDriver(network, 256)
	client := NewLoopbackDriver(network, 256)
	require.NoError(t, server.Bind("svc"))
	conn, err := client.Connect("svc")
	require.NoError(t, err)
	remote, _ := server.Accept()

	client.Disconnect(conn)
	assert.False(t, client.IsValid(conn))
	assert.False(t, server.IsValid(remote))

	ev := server.PollEvent()
	assert.Equal(t, DriverEventDisconnect, ev.Kind)
	assert.Equal(t, remote, ev.Conn)

	_, err = client.BeginSend(LoopbackPipelineStream, conn)
	assert.Error(t, err, "dead connection refuses sends")
}

func TestLoopbackPipelineMapping(t *testing.T) {
	d := NewLoopbackDriver(NewLoopbackNetwork(), 256)
	assert.Equal(t, LoopbackPipelineStream, d.PipelineFor(ChannelReliable))
	assert.Equal(t, LoopbackPipelineDatagram, d.PipelineFor(ChannelUnreliable))
	assert.Equal(t, 256-d.MaxHeaderSize(LoopbackPipelineStream),
		d.MaxPayloadSize(LoopbackPipelineStream))
}

func TestDriverFromPlugin(t *testing.T) {
	cfg := plugin.PluginConfig{"driver": {"loopback": {"tag": "plugtest", "maxPacketSize": 512}}}
	require.NoError(t, cfg.Validate())
	require.NoError(t, plugin.SetupPlugins(cfg))
	defer plugin.DestroyPlugins()

	d, err := DriverFromPlugin("loopback", "plugtest")
	require.NoError(t, err)
	assert.Equal(t, "loopback", d.(*LoopbackDriver).FactoryName())

	_, err = DriverFromPlugin("loopback", "missing")
	assert.Error(t, err)
}

func TestLoopbackFactory(t *testing.T) {
	f := &loopbackFactory{}
	assert.Equal(t, plugin.Driver, f.Type())
	assert.Equal(t, "loopback", f.Name())

	p, err := f.Setup(map[string]any{"maxPacketSize": 512})
	require.NoError(t, err)
	d, ok := p.(*LoopbackDriver)
	require.True(t, ok)
	assert.Equal(t, 512-d.MaxHeaderSize(LoopbackPipelineStream),
		d.MaxPayloadSize(LoopbackPipelineStream))
	assert.Equal(t, "loopback", d.FactoryName())

	assert.True(t, f.CanDelete(p))
	assert.NoError(t, f.Destroy(p, nil))

	_, err = f.Setup(map[string]any{"maxPacketSize": "huge"})
	assert.Error(t, err)
}
