package model

import "math"

// Instrument describes the tradable properties of a symbol.
// MinTick and LotSize may be NaN, meaning prices and quantities are not rounded.
type Instrument struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	MinTick    float64 `json:"min_tick" yaml:"min_tick"`       // smallest price increment
	LotSize    float64 `json:"lot_size" yaml:"lot_size"`       // smallest tradable quantity
	PointValue float64 `json:"point_value" yaml:"point_value"` // account currency per 1.0 of price
}

// NewInstrument returns an instrument with no tick/lot rounding and a point value of 1.
func NewInstrument(symbol string) Instrument {
	return Instrument{Symbol: symbol, MinTick: math.NaN(), LotSize: math.NaN(), PointValue: 1}
}

// Points returns the point value, defaulting to 1 when unset.
func (i Instrument) Points() float64 {
	if i.PointValue == 0 || math.IsNaN(i.PointValue) {
		return 1
	}
	return i.PointValue
}
