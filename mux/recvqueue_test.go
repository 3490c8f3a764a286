package mux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameStream(msgs ...[]byte) []byte {
	var stream []byte
	for _, msg := range msgs {
		hdr := make([]byte, frameHeaderSize)
		putFrameHeader(hdr, len(msg))
		stream = append(stream, hdr...)
		stream = append(stream, msg...)
	}
	return stream
}

func TestReceiveQueueReassemblesAtEverySplitPoint(t *testing.T) {
	want := [][]byte{
		[]byte("alpha"),
		{},
		[]byte("bb"),
		bytes.Repeat([]byte{0xCD}, 300),
	}
	stream := frameStream(want...)

	// Feed the same stream as two packets, cut at every possible offset:
	// mid-header, mid-payload, and on frame boundaries all behave the same.
	for split := 0; split <= len(stream); split++ {
		q := NewReceiveQueue()
		q.Feed(stream[:split])
		q.Feed(stream[split:])

		for i, wantMsg := range want {
			msg, ok := q.PopMessage()
			require.True(t, ok, "split %d, message %d", split, i)
			assert.Equal(t, wantMsg, msg, "split %d, message %d", split, i)
		}
		_, ok := q.PopMessage()
		assert.False(t, ok, "split %d should leave nothing", split)
		assert.Equal(t, 0, q.Pending(), "split %d", split)
	}
}

func TestReceiveQueueByteAtATime(t *testing.T) {
	stream := frameStream([]byte("trickle"))
	q := NewReceiveQueue()

	for i := 0; i < len(stream)-1; i++ {
		q.Feed(stream[i : i+1])
		_, ok := q.PopMessage()
		assert.False(t, ok, "byte %d must not complete the message", i)
	}
	q.Feed(stream[len(stream)-1:])

	msg, ok := q.PopMessage()
	require.True(t, ok)
	assert.Equal(t, []byte("trickle"), msg)
}

func TestReceiveQueueCoalescedPacket(t *testing.T) {
	q := NewReceiveQueue()
	q.Feed(frameStream([]byte("one"), []byte("two"), []byte("three")))

	var got [][]byte
	for {
		msg, ok := q.PopMessage()
		if !ok {
			break
		}
		got = append(got, msg)
	}
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, got)
}

func TestReceiveQueuePartialTrailingFrameWaits(t *testing.T) {
	full := frameStream([]byte("done"), []byte("not yet"))
	cut := len(full) - 3

	q := NewReceiveQueue()
	q.Feed(full[:cut])

	msg, ok := q.PopMessage()
	require.True(t, ok)
	assert.Equal(t, []byte("done"), msg)
	_, ok = q.PopMessage()
	assert.False(t, ok)
	assert.Positive(t, q.Pending())

	q.Feed(full[cut:])
	msg, ok = q.PopMessage()
	require.True(t, ok)
	assert.Equal(t, []byte("not yet"), msg)
}

func TestReceiveQueueReclaimsConsumedPrefix(t *testing.T) {
	q := NewReceiveQueue()
	big := bytes.Repeat([]byte{0xAB}, sendQueueFloor)

	// Long-lived connections cycle many messages; pending bytes must track
	// the unconsumed tail, not the lifetime total.
	for i := 0; i < 64; i++ {
		q.Feed(frameStream(big))
		msg, ok := q.PopMessage()
		require.True(t, ok)
		require.Equal(t, big, msg)
	}
	assert.Equal(t, 0, q.Pending())
}

func TestReceiveQueueRejectsHostileLengthPrefix(t *testing.T) {
	q := NewReceiveQueueWithLimit(1024)

	// A peer claiming a 256 MiB payload must be refused at the prefix,
	// before any of that payload is buffered.
	hdr := make([]byte, frameHeaderSize)
	putFrameHeader(hdr, 256<<20)
	assert.ErrorIs(t, q.Feed(hdr), ErrFrameTooLarge)
}

func TestReceiveQueueRejectsSplitHostilePrefix(t *testing.T) {
	q := NewReceiveQueueWithLimit(64)
	hdr := make([]byte, frameHeaderSize)
	putFrameHeader(hdr, 1<<30)

	// The check fires as soon as the prefix is complete, even when it
	// arrived split across packets.
	require.NoError(t, q.Feed(hdr[:2]))
	assert.ErrorIs(t, q.Feed(hdr[2:]), ErrFrameTooLarge)
}

func TestReceiveQueueLimitBoundary(t *testing.T) {
	atLimit := NewReceiveQueueWithLimit(16)
	want := bytes.Repeat([]byte{0x11}, 16)
	require.NoError(t, atLimit.Feed(frameStream(want)))
	msg, ok := atLimit.PopMessage()
	require.True(t, ok)
	assert.Equal(t, want, msg)

	overLimit := NewReceiveQueueWithLimit(16)
	assert.ErrorIs(t, overLimit.Feed(frameStream(bytes.Repeat([]byte{0x22}, 17))), ErrFrameTooLarge)
}

func TestReceiveQueueRejectsOversizeFrameBehindValidOne(t *testing.T) {
	q := NewReceiveQueueWithLimit(32)
	stream := frameStream([]byte("in bounds"))
	huge := make([]byte, frameHeaderSize)
	putFrameHeader(huge, 1<<20)
	stream = append(stream, huge...)

	// One packet carrying a valid frame plus a hostile prefix: the valid
	// frame pops, and the next feed trips on the hostile head.
	require.NoError(t, q.Feed(stream))
	msg, ok := q.PopMessage()
	require.True(t, ok)
	assert.Equal(t, []byte("in bounds"), msg)
	_, ok = q.PopMessage()
	require.False(t, ok)

	assert.ErrorIs(t, q.Feed([]byte{0x00}), ErrFrameTooLarge)
}

func TestPacketReaderWalksWholeFrames(t *testing.T) {
	packet := frameStream([]byte("x"), []byte("yy"), []byte("zzz"))
	r := NewPacketReader(packet)

	var got [][]byte
	for {
		msg, ok := r.NextMessage()
		if !ok {
			break
		}
		got = append(got, msg)
	}
	assert.Equal(t, [][]byte{[]byte("x"), []byte("yy"), []byte("zzz")}, got)
}

func TestPacketReaderStopsOnTruncatedFrame(t *testing.T) {
	packet := frameStream([]byte("whole"), []byte("torn"))
	r := NewPacketReader(packet[:len(packet)-2])

	msg, ok := r.NextMessage()
	require.True(t, ok)
	assert.Equal(t, []byte("whole"), msg)

	_, ok = r.NextMessage()
	assert.False(t, ok, "truncated trailing frame ends iteration")
}

func TestPacketReaderEmptyPacket(t *testing.T) {
	r := NewPacketReader(nil)
	_, ok := r.NextMessage()
	assert.False(t, ok)
}
