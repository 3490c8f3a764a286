package mux

// Channel is the delivery class an application picks per message.
type Channel uint8

const (
	// ChannelReliable delivers messages in order without loss.
	ChannelReliable Channel = iota
	// ChannelUnreliable delivers messages best-effort, in order when they
	// arrive at all.
	ChannelUnreliable

	channelCount
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelReliable:
		return "Reliable"
	case ChannelUnreliable:
		return "Unreliable"
	default:
		return "Unknown"
	}
}

// ChannelCaps describes how a channel's driver pipeline moves bytes. The
// batching and reassembly strategy follows from these capabilities rather
// than from the channel identity, so a future channel taxonomy only needs
// to declare its capabilities.
type ChannelCaps struct {
	// StreamSemantics means the pipeline delivers an ordered byte stream:
	// packets may split or merge frames, so outgoing batches may cut
	// across frame boundaries and the receiver reassembles. Without it
	// the pipeline preserves packet boundaries: each packet must carry
	// whole frames only and decodes standalone.
	StreamSemantics bool
}

// Caps returns the capability set of a channel.
func (c Channel) Caps() ChannelCaps {
	switch c {
	case ChannelReliable:
		return ChannelCaps{StreamSemantics: true}
	default:
		return ChannelCaps{StreamSemantics: false}
	}
}
