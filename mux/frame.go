// Package mux implements the batched message transport core of linkmux.
// It multiplexes many logical connections and two delivery channels over a
// small number of driver pipelines, batching small application messages
// into larger wire packets and reconstructing message boundaries on the
// receiving side.
package mux

import "encoding/binary"

// Every message travels as a frame: a 4-byte little-endian payload length
// followed by the payload bytes. Both ends of a link must agree on this
// layout; it is the only wire format the core owns.
const frameHeaderSize = 4

// FrameHeaderSize is the per-message framing overhead in bytes.
const FrameHeaderSize = frameHeaderSize

func putFrameHeader(dst []byte, payloadLen int) {
	binary.LittleEndian.PutUint32(dst, uint32(payloadLen))
}

// frameLength peeks the total frame size (header + payload) at the start
// of b. Returns false when fewer than frameHeaderSize bytes are present.
func frameLength(b []byte) (int, bool) {
	if len(b) < frameHeaderSize {
		return 0, false
	}
	return frameHeaderSize + int(binary.LittleEndian.Uint32(b)), true
}
