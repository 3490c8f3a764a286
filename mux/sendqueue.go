package mux

// SendQueue is the outgoing ring region for one (connection, channel)
// pair. Messages are appended as frames at tail and drained from head by
// the socket's flush loop. The backing buffer grows by doubling up to a
// fixed maximum and shrinks by halving back toward a fixed minimum, so
// steady-state traffic after a burst does not pin burst-sized memory.
//
// Invariants:
//
//	0 <= head <= tail <= len(buf)
//	minCapacity <= len(buf) <= maxCapacity
//	[head, tail) holds whole frames in FIFO push order
type SendQueue struct {
	buf  []byte
	head int
	tail int

	minCapacity int
	maxCapacity int
}

// sendQueueFloor is the absolute minimum capacity a queue will shrink to.
const sendQueueFloor = 4096

// NewSendQueue creates a queue bounded by maxCapacity. The maximum is
// rounded up to an even number; the minimum is the deepest halving of the
// maximum that still covers the floor, which keeps the doubling-up and
// halving-down paths symmetric.
func NewSendQueue(maxCapacity int) *SendQueue {
	if maxCapacity < sendQueueFloor {
		maxCapacity = sendQueueFloor
	}
	if maxCapacity%2 != 0 {
		maxCapacity++
	}

	minCapacity := maxCapacity
	for minCapacity/2 >= sendQueueFloor {
		minCapacity /= 2
	}

	return &SendQueue{
		buf:         make([]byte, minCapacity),
		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
	}
}

// IsEmpty reports whether no queued bytes remain.
func (q *SendQueue) IsEmpty() bool {
	return q.head == q.tail
}

// Length returns the number of queued bytes (framing included).
func (q *SendQueue) Length() int {
	return q.tail - q.head
}

// Capacity returns the current backing buffer size.
func (q *SendQueue) Capacity() int {
	return len(q.buf)
}

// MinCapacity returns the shrink floor chosen at construction.
func (q *SendQueue) MinCapacity() int {
	return q.minCapacity
}

// MaxCapacity returns the growth ceiling chosen at construction.
func (q *SendQueue) MaxCapacity() int {
	return q.maxCapacity
}

// Push appends one message as a frame. It returns false, mutating
// nothing, only when the frame cannot fit even at maxCapacity. The
// caller's bytes are copied; msg may be reused immediately.
func (q *SendQueue) Push(msg []byte) bool {
	frameLen := frameHeaderSize + len(msg)
	if frameLen > q.maxCapacity {
		return false
	}

	compacted := false
	if q.tail+frameLen > len(q.buf) {
		if q.head > 0 {
			q.compact()
			compacted = true
		}
		if q.tail+frameLen > len(q.buf) && !q.grow(frameLen) {
			return false
		}
	}

	putFrameHeader(q.buf[q.tail:], len(msg))
	copy(q.buf[q.tail+frameHeaderSize:], msg)
	q.tail += frameLen

	// Shrink is only considered on the compaction path so a queue that
	// never wraps its ring does not thrash between sizes.
	if compacted {
		q.shrink()
	}
	return true
}

// compact moves the live region to offset zero.
func (q *SendQueue) compact() {
	copy(q.buf, q.buf[q.head:q.tail])
	q.tail -= q.head
	q.head = 0
}

// grow doubles capacity until frameLen fits behind tail, clamped to
// maxCapacity. Caller has already compacted, so head == 0.
func (q *SendQueue) grow(frameLen int) bool {
	newCap := len(q.buf)
	for newCap < q.tail+frameLen {
		newCap *= 2
	}
	if newCap > q.maxCapacity {
		newCap = q.maxCapacity
	}
	if q.tail+frameLen > newCap {
		return false
	}

	next := make([]byte, newCap)
	copy(next, q.buf[:q.tail])
	q.buf = next
	return true
}

// shrink halves capacity while more than three quarters of the buffer
// beyond tail is unused, never dropping below minCapacity.
func (q *SendQueue) shrink() {
	newCap := len(q.buf)
	for newCap/2 >= q.minCapacity && q.tail*4 <= newCap {
		newCap /= 2
	}
	if newCap == len(q.buf) {
		return
	}

	next := make([]byte, newCap)
	copy(next, q.buf[:q.tail])
	q.buf = next
}

// FillWithMessages copies whole frames from head into dst, stopping at
// the first frame that does not fit or at the end of the queued data.
// Queue state is not mutated; the caller follows up with Consume once the
// bytes are committed to the driver. Used for pipelines that preserve
// packet boundaries, where the remote end decodes each packet standalone.
func (q *SendQueue) FillWithMessages(dst []byte) int {
	written := 0
	off := q.head
	for off < q.tail {
		frameLen, ok := frameLength(q.buf[off:q.tail])
		if !ok || written+frameLen > len(dst) {
			break
		}
		copy(dst[written:], q.buf[off:off+frameLen])
		written += frameLen
		off += frameLen
	}
	return written
}

// FillWithBytes copies up to len(dst) raw queued bytes regardless of
// frame boundaries. Queue state is not mutated. Used for pipelines with
// byte-stream semantics, where the remote reassembler restores boundaries.
func (q *SendQueue) FillWithBytes(dst []byte) int {
	n := q.tail - q.head
	if n > len(dst) {
		n = len(dst)
	}
	copy(dst[:n], q.buf[q.head:q.head+n])
	return n
}

// Consume removes n bytes from the head. n must be a value returned by a
// fill call since the last Consume; any other value corrupts frame
// boundaries. Consuming everything resets the queue to minCapacity, as
// nothing needs preserving.
func (q *SendQueue) Consume(n int) {
	if n <= 0 {
		return
	}
	if n >= q.tail-q.head {
		q.head = 0
		q.tail = 0
		if len(q.buf) != q.minCapacity {
			q.buf = make([]byte, q.minCapacity)
		}
		return
	}
	q.head += n
}
