package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Fixed-capacity single-producer/single-consumer octet ring.
 *
 * Description:	Used for the two sync-serial FIFOs (bit engine <-> HDLC
 *		framer) and the async-channel RX FIFO (host link -> DVM
 *		parser). One side is always the tick ISR equivalent
 *		(the sync-bit goroutine) or the async-RX reader goroutine;
 *		the other is always the cooperative bridge loop. Head is
 *		only ever advanced by the producer, tail only by the
 *		consumer, so plain atomic publish/consume of the index is
 *		enough - no mutex needed.
 *
 *---------------------------------------------------------------*/

import "sync/atomic"

// octetFIFO is a bounded ring buffer of bytes safe for exactly one
// producer goroutine and one consumer goroutine running concurrently.
//
// Invariant: size == (head - tail) mod capacity.
// A ring with head == tail is empty; a ring with one free slot between
// head and tail is full (the classic "sacrifice a slot" tie-break, so
// size never needs to be read racily to tell full from empty).
type octetFIFO struct {
	buf  []byte
	head atomic.Uint32 // next write index, advanced by producer only
	tail atomic.Uint32 // next read index, advanced by consumer only
	cap  uint32         // immutable after construction
}

// newOctetFIFO allocates a ring able to hold capacity-1 octets at once
// (one slot is sacrificed to disambiguate full from empty).
func newOctetFIFO(capacity int) *octetFIFO {
	if capacity < 2 {
		capacity = 2
	}
	return &octetFIFO{
		buf: make([]byte, capacity),
		cap: uint32(capacity),
	}
}

// push appends one octet. Returns false if the ring is full; the octet
// is not stored in that case.
func (f *octetFIFO) push(b byte) bool {
	head := f.head.Load()
	next := head + 1
	if next >= f.cap {
		next = 0
	}
	if next == f.tail.Load() {
		return false
	}
	f.buf[head] = b
	f.head.Store(next)
	return true
}

// pop removes and returns the oldest octet. Returns false if empty.
func (f *octetFIFO) pop() (byte, bool) {
	tail := f.tail.Load()
	if tail == f.head.Load() {
		return 0, false
	}
	b := f.buf[tail]
	next := tail + 1
	if next >= f.cap {
		next = 0
	}
	f.tail.Store(next)
	return b, true
}

// peek returns the oldest octet without removing it.
func (f *octetFIFO) peek() (byte, bool) {
	tail := f.tail.Load()
	if tail == f.head.Load() {
		return 0, false
	}
	return f.buf[tail], true
}

// clear drops all buffered octets. Only safe to call from the consumer
// side (it rewrites tail to match the producer's last published head).
func (f *octetFIFO) clear() {
	f.tail.Store(f.head.Load())
}

// size returns the number of octets currently buffered.
func (f *octetFIFO) size() int {
	head := f.head.Load()
	tail := f.tail.Load()
	if head >= tail {
		return int(head - tail)
	}
	return int(f.cap - tail + head)
}

// free returns the number of additional octets that can be pushed
// before the ring reports full.
func (f *octetFIFO) free() int {
	return int(f.cap) - 1 - f.size()
}

func (f *octetFIFO) empty() bool {
	return f.head.Load() == f.tail.Load()
}
