package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestSendProtoRoundTrip(t *testing.T) {
	p := newSocketPair(t, testSocketCfg())

	require.NoError(t, SendProto(p.client, ChannelReliable, wrapperspb.String("ping")))
	p.tick()

	e := pollKind(t, p.server.PollEvent, EventMessage)
	var got wrapperspb.StringValue
	require.NoError(t, DecodeProto(e, &got))
	assert.Equal(t, "ping", got.GetValue())

	// Reply through the bound sender so both socket kinds share one send
	// surface.
	require.NoError(t, SendProto(p.server.BindConnection(e.Conn), ChannelReliable, wrapperspb.String("pong")))
	p.tick()

	e = pollKind(t, p.client.PollEvent, EventMessage)
	require.NoError(t, DecodeProto(e, &got))
	assert.Equal(t, "pong", got.GetValue())
}

func TestDecodeProtoRejectsNonMessageEvent(t *testing.T) {
	var out wrapperspb.StringValue
	err := DecodeProto(Event{Kind: EventRemoteStarted}, &out)
	assert.Error(t, err)
}
