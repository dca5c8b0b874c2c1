// Package window provides the history buffer behind every windowed primitive.
//
// A Cache is an append-only sequence addressed in reverse: Get(0) is the value
// pushed last, Get(1) the one before it. It grows by exactly one value per bar
// per owning primitive and never overwrites a value.
package window

import (
	"fmt"
	"math"
)

// Cache is a single-owner history buffer. Not safe for concurrent use.
type Cache struct {
	buf  []float64
	head int // index of the oldest live value; advanced by ShiftOldest
}

// New creates a cache, preallocating room for capacityHint values.
func New(capacityHint int) *Cache {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Cache{buf: make([]float64, 0, capacityHint)}
}

// Push appends v as the most recent value.
func (c *Cache) Push(v float64) {
	c.buf = append(c.buf, v)
}

// Size returns the number of live values.
func (c *Cache) Size() int { return len(c.buf) - c.head }

// Get returns the value n pushes before the most recent one, or NaN when
// fewer than n+1 values are held.
func (c *Cache) Get(n int) float64 {
	if n < 0 || n >= c.Size() {
		return math.NaN()
	}
	return c.buf[len(c.buf)-1-n]
}

// Filled reports whether at least length values are held.
func (c *Cache) Filled(length int) bool { return c.Size() >= length }

// Window returns the most recent length values ordered oldest to newest.
// The slice aliases the cache and must not be modified. Calling it before
// Filled(length) is a precondition violation.
func (c *Cache) Window(length int) []float64 {
	if length < 0 || length > c.Size() {
		panic(fmt.Sprintf("window: Window(%d) with only %d values", length, c.Size()))
	}
	return c.buf[len(c.buf)-length:]
}

// ShiftOldest drops the oldest value. Only a few consumers that keep a fixed
// span use it; it is a no-op on an empty cache.
func (c *Cache) ShiftOldest() {
	if c.Size() == 0 {
		return
	}
	c.head++
	// Reclaim the dead prefix once it dominates the backing array.
	if c.head > 64 && c.head*2 > len(c.buf) {
		n := copy(c.buf, c.buf[c.head:])
		c.buf = c.buf[:n]
		c.head = 0
	}
}
