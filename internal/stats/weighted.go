package stats

import (
	"math"

	"tradesim/internal/na"
	"tradesim/internal/window"
)

// Weighted applies a fixed weight vector to the most recent window.
// weights[0] applies to the oldest value in the window.
type Weighted struct {
	weights []float64
	norm    float64
	cache   *window.Cache
}

// NewWeighted creates a weighted average with the given kernel; the output is
// sum(w_i*x_i)/norm, NaN until the window fills.
func NewWeighted(weights []float64, norm float64) *Weighted {
	mustLength("weighted", len(weights))
	w := make([]float64, len(weights))
	copy(w, weights)
	return &Weighted{weights: w, norm: norm, cache: window.New(len(w))}
}

func (w *Weighted) Step(x float64) float64 {
	w.cache.Push(x)
	n := len(w.weights)
	if !w.cache.Filled(n) {
		return na.Value()
	}
	acc := 0.0
	for i, v := range w.cache.Window(n) {
		acc += v * w.weights[i]
	}
	return na.Div(acc, w.norm)
}

// NewWMA is the linearly weighted moving average: weights 1..length, newest
// heaviest.
func NewWMA(length int) *Weighted {
	mustLength("wma", length)
	weights := make([]float64, length)
	for i := range weights {
		weights[i] = float64(i + 1)
	}
	return NewWeighted(weights, float64(length*(length+1))/2)
}

// NewSWMA is the symmetric weighted average over a fixed window of 4 with
// weights [1,2,2,1]/6.
func NewSWMA() *Weighted {
	return NewWeighted([]float64{1, 2, 2, 1}, 6)
}

// HMA is the Hull moving average:
// WMA(2*WMA(x, n/2) - WMA(x, n), floor(sqrt(n))).
type HMA struct {
	half, full, outer *Weighted
}

func NewHMA(length int) *HMA {
	mustLength("hma", length)
	half := length / 2
	if half < 1 {
		half = 1
	}
	root := int(math.Floor(math.Sqrt(float64(length))))
	if root < 1 {
		root = 1
	}
	return &HMA{half: NewWMA(half), full: NewWMA(length), outer: NewWMA(root)}
}

func (h *HMA) Step(x float64) float64 {
	diff := 2*h.half.Step(x) - h.full.Step(x)
	return h.outer.Step(diff)
}
