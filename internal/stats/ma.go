package stats

import (
	"tradesim/internal/na"
)

// SMA is the simple moving average: sliding sum divided by length once the
// window is full, NaN before. NaN inputs are treated as absent from the sum.
type SMA struct {
	length  int
	sum     *Sum
	current float64
}

// NewSMA creates a simple moving average over length bars.
func NewSMA(length int) *SMA {
	mustLength("sma", length)
	return &SMA{length: length, sum: NewSum(length), current: na.Value()}
}

func (s *SMA) Step(x float64) float64 {
	s.current = s.sum.Step(x) / float64(s.length)
	return s.current
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.sum.Ready() }

// Smoothed is the exponential recurrence shared by EMA and RMA.
//
// Warm-up: while at most length values have been observed the output is the
// SMA of those values (NaN until length of them exist, the seed at exactly
// length). From the next bar on, out = alpha*x + (1-alpha)*prev. A NaN input
// yields NaN for that bar and leaves the recurrence state untouched; the
// state is never reset for the life of the instance.
type Smoothed struct {
	length int
	alpha  float64
	seed   *SMA
	count  int
	prev   float64
	output float64
}

// NewSmoothed creates a recurrence with an explicit alpha.
func NewSmoothed(length int, alpha float64) *Smoothed {
	mustLength("smoothed", length)
	return &Smoothed{length: length, alpha: alpha, seed: NewSMA(length), prev: na.Value(), output: na.Value()}
}

// NewEMA uses alpha = 2/(length+1).
func NewEMA(length int) *Smoothed {
	mustLength("ema", length)
	return NewSmoothed(length, 2.0/float64(length+1))
}

// NewRMA (Wilder smoothing) uses alpha = 1/length.
func NewRMA(length int) *Smoothed {
	mustLength("rma", length)
	return NewSmoothed(length, 1.0/float64(length))
}

func (s *Smoothed) Step(x float64) float64 {
	s.count++
	if s.count <= s.length {
		s.prev = s.seed.Step(x)
		s.output = s.prev
		return s.output
	}
	if na.Is(x) {
		s.output = na.Value()
		return s.output
	}
	if na.Is(s.prev) {
		// the seed window held only NaNs; start the recurrence from x
		s.prev = x
	} else {
		s.prev = s.alpha*x + (1-s.alpha)*s.prev
	}
	s.output = s.prev
	return s.output
}

func (s *Smoothed) Value() float64 { return s.output }
func (s *Smoothed) Ready() bool    { return s.count >= s.length }
func (s *Smoothed) Alpha() float64 { return s.alpha }
