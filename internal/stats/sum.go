package stats

import (
	"tradesim/internal/na"
	"tradesim/internal/window"
)

// Sum is a windowed sum maintained by sliding subtraction: O(1) per bar.
// NaN inputs occupy a slot but contribute nothing. The output is NaN until
// the window first fills and defined on every bar after that.
type Sum struct {
	length  int
	cache   *window.Cache
	sum     float64
	current float64
}

// NewSum creates a windowed sum over length bars.
func NewSum(length int) *Sum {
	mustLength("sum", length)
	return &Sum{length: length, cache: window.New(length + 1), current: na.Value()}
}

func (s *Sum) Step(x float64) float64 {
	s.cache.Push(x)
	if !na.Is(x) {
		s.sum += x
	}
	if s.cache.Size() > s.length {
		// value leaving the window
		if old := s.cache.Get(s.length); !na.Is(old) {
			s.sum -= old
		}
		s.cache.ShiftOldest()
	}
	if s.cache.Filled(s.length) {
		s.current = s.sum
	}
	return s.current
}

func (s *Sum) Value() float64 { return s.current }
func (s *Sum) Ready() bool    { return s.cache.Filled(s.length) }
func (s *Sum) Length() int    { return s.length }
