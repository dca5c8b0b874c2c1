// Package ringbuf is a bounded single-producer single-consumer queue. The
// run collector pushes progress events into it and the broadcaster drains
// it, so a slow WebSocket client can never stall a backtest.
package ringbuf

import (
	"math/bits"
	"sync/atomic"
)

// pad keeps the producer and consumer counters on separate cache lines.
type pad [64]byte

// Ring is a lock-free SPSC queue of T with a power-of-two capacity.
type Ring[T any] struct {
	buf  []T
	mask uint64

	_        pad
	head     atomic.Uint64 // next write; producer only
	_        pad
	tail     atomic.Uint64 // next read; consumer only
	_        pad
	overflow atomic.Uint64
}

// New returns a ring holding at least capacity items (never fewer than 2).
func New[T any](capacity int) *Ring[T] {
	size := max(nextPow2(capacity), 2)
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Push enqueues v, or counts an overflow and returns false when the ring is
// full. Producer side only.
func (r *Ring[T]) Push(v T) bool {
	w := r.head.Load()
	if w-r.tail.Load() == uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}
	r.buf[w&r.mask] = v
	r.head.Store(w + 1)
	return true
}

// Pop dequeues the oldest item. Consumer side only.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	rd := r.tail.Load()
	if rd == r.head.Load() {
		return zero, false
	}
	slot := &r.buf[rd&r.mask]
	v := *slot
	*slot = zero
	r.tail.Store(rd + 1)
	return v, true
}

// Drain pops every available item into fn and returns how many it popped.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Overflow is the number of pushes rejected on a full ring.
func (r *Ring[T]) Overflow() uint64 {
	return r.overflow.Load()
}

// nextPow2 rounds n up to a power of two; n <= 1 gives 1.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
