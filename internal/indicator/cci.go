package indicator

import (
	"math"

	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/stats"
	"tradesim/internal/window"
)

// CCI is the Commodity Channel Index:
// (x - SMA(x, n)) / (0.015 * meanDeviation(x, n)).
// A zero mean deviation gives NaN.
//
// For n < 4 the values are known to differ from the charting platform's
// cci; use n >= 4 when comparing against it.
type CCI struct {
	name    string
	source  model.Field
	period  int
	sma     *stats.SMA
	cache   *window.Cache
	current float64
}

func NewCCI(period int) *CCI {
	return &CCI{
		name:    model.FeatureName("CCI", period),
		source:  model.FieldHLC3,
		period:  period,
		sma:     stats.NewSMA(period),
		cache:   window.New(period),
		current: math.NaN(),
	}
}

func (c *CCI) withName(name string, src model.Field) *CCI {
	c.name, c.source = name, src
	return c
}

func (c *CCI) Name() string { return c.name }

func (c *CCI) Update(bar model.Bar) { c.Step(bar.Value(c.source)) }

func (c *CCI) Step(x float64) float64 {
	c.cache.Push(x)
	mean := c.sma.Step(x)
	if na.Is(mean) || !c.cache.Filled(c.period) {
		c.current = math.NaN()
		return c.current
	}
	dev := 0.0
	for _, v := range c.cache.Window(c.period) {
		dev += math.Abs(v - mean)
	}
	dev /= float64(c.period)
	if dev == 0 {
		c.current = math.NaN()
		return c.current
	}
	c.current = na.Div(x-mean, 0.015*dev)
	return c.current
}

func (c *CCI) Value() float64 { return c.current }
func (c *CCI) Ready() bool    { return !math.IsNaN(c.current) }
