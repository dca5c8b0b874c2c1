package stats

import (
	"tradesim/internal/na"
	"tradesim/internal/window"
)

// Extreme tracks the highest or lowest value of the last length bars.
//
// The window is scanned from the most recent value to the oldest; on ties the
// most recent value wins. A NaN met during the scan marks stale history: the
// best candidate found so far is returned without looking further back (NaN
// when the current value itself is NaN). The output is NaN until the window
// fills.
type Extreme struct {
	length int
	cache  *window.Cache
	better func(a, b float64) bool
	value  float64
	offset int
}

// NewHighest tracks the window maximum.
func NewHighest(length int) *Extreme {
	mustLength("highest", length)
	return &Extreme{length: length, cache: window.New(length), better: func(a, b float64) bool { return a > b }}
}

// NewLowest tracks the window minimum.
func NewLowest(length int) *Extreme {
	mustLength("lowest", length)
	return &Extreme{length: length, cache: window.New(length), better: func(a, b float64) bool { return a < b }}
}

func (e *Extreme) Step(x float64) float64 {
	e.cache.Push(x)
	e.value, e.offset = na.Value(), 0
	if !e.cache.Filled(e.length) {
		return e.value
	}
	for i := 0; i < e.length; i++ {
		v := e.cache.Get(i)
		if na.Is(v) {
			break
		}
		if i == 0 || e.better(v, e.value) {
			e.value, e.offset = v, i
		}
	}
	return e.value
}

// Value is the last output.
func (e *Extreme) Value() float64 { return e.value }

// Offset is the non-positive bar offset of the last extreme (0 = current bar).
// It is 0 while Value is NaN.
func (e *Extreme) Offset() int { return -e.offset }

// ExtremeBars reports where the window extreme sits instead of its value: the
// non-positive bar offset, NaN while the extreme is NaN.
type ExtremeBars struct {
	ext *Extreme
}

func NewHighestBars(length int) *ExtremeBars { return &ExtremeBars{ext: NewHighest(length)} }
func NewLowestBars(length int) *ExtremeBars  { return &ExtremeBars{ext: NewLowest(length)} }

func (b *ExtremeBars) Step(x float64) float64 {
	if na.Is(b.ext.Step(x)) {
		return na.Value()
	}
	return float64(b.ext.Offset())
}

// PercentRank is the percentage of the previous length values that are less
// than or equal to the current value. NaN entries in the window are not
// counted; the divisor stays length. NaN until length+1 values are seen.
type PercentRank struct {
	length int
	cache  *window.Cache
}

func NewPercentRank(length int) *PercentRank {
	mustLength("percentrank", length)
	return &PercentRank{length: length, cache: window.New(length + 1)}
}

func (p *PercentRank) Step(x float64) float64 {
	p.cache.Push(x)
	if !p.cache.Filled(p.length+1) || na.Is(x) {
		return na.Value()
	}
	count := 0
	for i := 1; i <= p.length; i++ {
		v := p.cache.Get(i)
		if !na.Is(v) && v <= x {
			count++
		}
	}
	return float64(count) / float64(p.length) * 100
}

// Change is x - x[length]; NaN until length+1 values are seen.
type Change struct {
	length int
	cache  *window.Cache
}

func NewChange(length int) *Change {
	mustLength("change", length)
	return &Change{length: length, cache: window.New(length + 1)}
}

func (c *Change) Step(x float64) float64 {
	c.cache.Push(x)
	return x - c.cache.Get(c.length)
}
