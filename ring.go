// ring.go - the Delta Ring Buffer: a single-producer single-consumer ring
// with power-of-two capacity, cache-line-padded cursors, and two
// backpressure thresholds.

package aggo

import "sync/atomic"

const cacheLinePad = 64

// paddedCursor isolates head/tail onto separate cache lines so producer
// and consumer spinning on their own cursor never false-share.
type paddedCursor struct {
	v    uint64
	_pad [cacheLinePad - 8]byte
}

// Delta is one mutation event flowing through a ring: a signed add/remove
// (sign +1 add, -1 remove) against a primary-key-identified document.
type Delta struct {
	Sign    int8
	RowID   RowId
	Doc     Document
	BatchID uint64
}

// RingBuffer is a bounded SPSC queue of Deltas with pause/resume
// backpressure. Capacity is rounded up to the next power of two.
type RingBuffer struct {
	capacity uint64
	mask     uint64
	slots    []Delta

	head paddedCursor // next free write slot (producer-owned)
	tail paddedCursor // next slot to read (consumer-owned)

	pauseAt  uint64 // occupancy count at/above which produce() fails
	resumeAt uint64 // occupancy count at/below which a paused producer may resume

	paused  int32
	batches batchIDGenerator
}

// NewRingBuffer builds a ring of at least capacity slots (rounded up to a
// power of two) with the given pause/resume occupancy fractions.
func NewRingBuffer(capacity int, pauseFrac, resumeFrac float64) *RingBuffer {
	cap64 := nextPowerOfTwo(uint64(capacity))
	if cap64 == 0 {
		cap64 = 1
	}
	return &RingBuffer{
		capacity: cap64,
		mask:     cap64 - 1,
		slots:    make([]Delta, cap64),
		pauseAt:  uint64(float64(cap64) * pauseFrac),
		resumeAt: uint64(float64(cap64) * resumeFrac),
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (r *RingBuffer) occupancy() uint64 {
	head := atomic.LoadUint64(&r.head.v)
	tail := atomic.LoadUint64(&r.tail.v)
	return head - tail
}

// Produce appends d to the ring. It returns false (an explicit,
// non-blocking failure) if the ring is full or currently paused for
// backpressure.
func (r *RingBuffer) Produce(d Delta) bool {
	if atomic.LoadInt32(&r.paused) != 0 {
		return false
	}
	occ := r.occupancy()
	if occ >= r.capacity {
		return false
	}
	d.BatchID = r.batches.next()
	head := atomic.LoadUint64(&r.head.v)
	r.slots[head&r.mask] = d
	atomic.AddUint64(&r.head.v, 1)
	if occ+1 >= r.pauseAt {
		atomic.StoreInt32(&r.paused, 1)
	}
	return true
}

// ConsumeBatch drains up to max pending deltas, resuming the producer once
// occupancy falls to or below the resume threshold.
func (r *RingBuffer) ConsumeBatch(max int) []Delta {
	tail := atomic.LoadUint64(&r.tail.v)
	head := atomic.LoadUint64(&r.head.v)
	avail := head - tail
	if avail == 0 {
		return nil
	}
	n := avail
	if n > uint64(max) {
		n = uint64(max)
	}
	out := make([]Delta, n)
	for i := uint64(0); i < n; i++ {
		out[i] = r.slots[(tail+i)&r.mask]
	}
	atomic.AddUint64(&r.tail.v, n)
	if r.occupancy() <= r.resumeAt {
		atomic.StoreInt32(&r.paused, 0)
	}
	return out
}

// Paused reports whether the ring is currently refusing Produce calls.
func (r *RingBuffer) Paused() bool { return atomic.LoadInt32(&r.paused) != 0 }

// Len returns the number of deltas currently buffered.
func (r *RingBuffer) Len() int { return int(r.occupancy()) }

// Cap returns the ring's slot capacity.
func (r *RingBuffer) Cap() int { return int(r.capacity) }
