package indicator

import (
	"math"

	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/stats"
)

// RSI calculates the Relative Strength Index using Wilder's smoothing (RMA of
// gains and losses). The first bar only records the price, so the first value
// appears after period+1 bars. Update is O(1) per bar.
type RSI struct {
	name    string
	source  model.Field
	period  int
	count   int
	prev    float64
	up      *stats.Smoothed
	down    *stats.Smoothed
	current float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		name:    model.FeatureName("RSI", period),
		source:  model.FieldClose,
		period:  period,
		up:      stats.NewRMA(period),
		down:    stats.NewRMA(period),
		prev:    math.NaN(),
		current: math.NaN(),
	}
}

func (r *RSI) withName(name string, src model.Field) *RSI {
	r.name, r.source = name, src
	return r
}

func (r *RSI) Name() string { return r.name }

func (r *RSI) Update(bar model.Bar) { r.Step(bar.Value(r.source)) }

// Step feeds one price and returns the RSI.
func (r *RSI) Step(price float64) float64 {
	r.count++
	if r.count == 1 {
		// First price: no delta yet
		r.prev = price
		return r.current
	}

	delta := price - r.prev
	r.prev = price
	up := r.up.Step(math.Max(delta, 0))
	down := r.down.Step(math.Max(-delta, 0))

	switch {
	case na.Any(up, down):
		r.current = math.NaN()
	case down == 0:
		r.current = 100
	case up == 0:
		r.current = 0
	default:
		r.current = 100 - 100/(1+up/down)
	}
	return r.current
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return !math.IsNaN(r.current) }
