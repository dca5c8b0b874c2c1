package stats

import (
	"math"

	"tradesim/internal/na"
	"tradesim/internal/window"
)

// Welford accumulates mean and variance over every value seen, using
// Welford's update for numerical stability on long streams. History is
// unbounded and each step is O(1). NaN inputs are ignored.
type Welford struct {
	n    int
	mean float64
	m2   float64
}

// NewWelford returns an empty accumulator.
func NewWelford() *Welford { return &Welford{} }

// Push adds one observation.
func (w *Welford) Push(x float64) {
	if na.Is(x) {
		return
	}
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// Step pushes x and returns the sample variance.
func (w *Welford) Step(x float64) float64 {
	w.Push(x)
	return w.Variance()
}

// Variance is the sample variance M2/(n-1); 0 while n <= 1.
func (w *Welford) Variance() float64 {
	if w.n <= 1 {
		return 0
	}
	return w.m2 / float64(w.n-1)
}

// Stdev is the square root of Variance.
func (w *Welford) Stdev() float64 { return math.Sqrt(w.Variance()) }

// Mean is NaN until the first observation.
func (w *Welford) Mean() float64 {
	if w.n == 0 {
		return na.Value()
	}
	return w.mean
}

func (w *Welford) Count() int { return w.n }

// Stdev is a Welford accumulator whose Step returns the standard deviation.
type Stdev struct{ Welford }

func NewStdev() *Stdev { return &Stdev{} }

func (s *Stdev) Step(x float64) float64 {
	s.Push(x)
	return s.Stdev()
}

// WindowStdev is the population standard deviation of the last length values
// (the charting platform's stdev). NaN until the window fills; a NaN inside
// the window makes the output NaN.
type WindowStdev struct {
	length int
	cache  *window.Cache
	biased bool
}

// NewWindowStdev creates a windowed standard deviation. biased selects the
// population (divide by n) estimate; otherwise the sample estimate is used.
func NewWindowStdev(length int, biased bool) *WindowStdev {
	mustLength("stdev", length)
	return &WindowStdev{length: length, cache: window.New(length), biased: biased}
}

func (s *WindowStdev) Step(x float64) float64 {
	s.cache.Push(x)
	if !s.cache.Filled(s.length) {
		return na.Value()
	}
	vals := s.cache.Window(s.length)
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(s.length)
	ss := 0.0
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	div := float64(s.length)
	if !s.biased {
		div--
	}
	return math.Sqrt(na.Div(ss, div))
}
