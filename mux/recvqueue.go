package mux

import (
	"errors"
)

// recvCompactThreshold is the consumed-prefix size past which the
// receive queue compacts instead of growing over dead bytes.
const recvCompactThreshold = 4096

// ErrFrameTooLarge means an inbound length prefix claimed a payload over
// the queue's limit. The peer is broken or hostile; the owning socket
// drops the connection rather than buffer toward a frame it would never
// deliver.
var ErrFrameTooLarge = errors.New("inbound frame exceeds size limit")

// ReceiveQueue reassembles framed messages from a byte stream that may
// split one frame across packets or coalesce several frames into one.
// One instance exists per connection using a stream-semantics channel; it
// persists across packets and is disposed with the connection.
type ReceiveQueue struct {
	buf        []byte
	head       int
	maxPayload int
}

// NewReceiveQueue creates an empty reassembly queue with no payload
// limit.
func NewReceiveQueue() *ReceiveQueue {
	return &ReceiveQueue{}
}

// NewReceiveQueueWithLimit creates a reassembly queue that refuses frames
// whose prefix claims a payload over maxPayload bytes. A limit <= 0 means
// unbounded.
func NewReceiveQueueWithLimit(maxPayload int) *ReceiveQueue {
	return &ReceiveQueue{maxPayload: maxPayload}
}

// Feed appends one packet's bytes to the pending tail. It returns
// ErrFrameTooLarge as soon as the frame at the head of the queue claims a
// payload over the limit, before any of that payload accumulates; the
// queue must be discarded after an error.
func (q *ReceiveQueue) Feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	// Reclaim consumed prefix before growing past it.
	if q.head > 0 && q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	} else if q.head > len(q.buf)/2 && q.head >= recvCompactThreshold {
		q.buf = append(q.buf[:0], q.buf[q.head:]...)
		q.head = 0
	}
	q.buf = append(q.buf, chunk...)

	if frameLen, ok := frameLength(q.buf[q.head:]); ok &&
		q.maxPayload > 0 && frameLen-frameHeaderSize > q.maxPayload {
		return ErrFrameTooLarge
	}
	return nil
}

// Pending returns the number of buffered bytes not yet resolved into a
// complete message.
func (q *ReceiveQueue) Pending() int {
	return len(q.buf) - q.head
}

// PopMessage removes and returns the next complete message. It returns
// ok == false without consuming anything while the length prefix or the
// payload is still partial.
func (q *ReceiveQueue) PopMessage() ([]byte, bool) {
	pending := q.buf[q.head:]
	frameLen, ok := frameLength(pending)
	if !ok || len(pending) < frameLen {
		return nil, false
	}

	msg := make([]byte, frameLen-frameHeaderSize)
	copy(msg, pending[frameHeaderSize:frameLen])
	q.head += frameLen
	return msg, true
}

// PacketReader decodes the frames of a single boundary-preserving packet.
// Such packets carry only whole frames, so no state survives the packet;
// a truncated trailing frame means corruption and ends iteration.
type PacketReader struct {
	data []byte
	off  int
}

// NewPacketReader wraps one packet's bytes.
func NewPacketReader(packet []byte) *PacketReader {
	return &PacketReader{data: packet}
}

// NextMessage returns the next complete message in the packet.
func (r *PacketReader) NextMessage() ([]byte, bool) {
	rest := r.data[r.off:]
	frameLen, ok := frameLength(rest)
	if !ok || len(rest) < frameLen {
		return nil, false
	}
	r.off += frameLen
	return rest[frameHeaderSize:frameLen], true
}
