package model

import (
	"math"
	"time"
)

// Bar is one OHLCV sample produced by a data provider.
// Bars are values: once produced they are never mutated.
type Bar struct {
	Index   int       `json:"index"` // tick index within the provider
	Time    time.Time `json:"time"`  // bar open time (UTC); zero when HasTime is false
	HasTime bool      `json:"has_time"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
}

// NaBar returns a bar whose price and volume fields are all NaN.
// Used when a lookback reaches before the first tick.
func NaBar(index int) Bar {
	nan := math.NaN()
	return Bar{Index: index, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan}
}

// Field selects a scalar from a bar.
type Field int

const (
	FieldOpen Field = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
	FieldHL2   // (high+low)/2
	FieldHLC3  // (high+low+close)/3
	FieldOHLC4 // (open+high+low+close)/4
)

var fieldNames = [...]string{"open", "high", "low", "close", "volume", "hl2", "hlc3", "ohlc4"}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

// ParseField maps a source name ("close", "hl2", ...) to a Field.
func ParseField(s string) (Field, bool) {
	for i, n := range fieldNames {
		if n == s {
			return Field(i), true
		}
	}
	return 0, false
}

// Value extracts the field f from b.
func (b Bar) Value(f Field) float64 {
	switch f {
	case FieldOpen:
		return b.Open
	case FieldHigh:
		return b.High
	case FieldLow:
		return b.Low
	case FieldClose:
		return b.Close
	case FieldVolume:
		return b.Volume
	case FieldHL2:
		return (b.High + b.Low) / 2
	case FieldHLC3:
		return (b.High + b.Low + b.Close) / 3
	case FieldOHLC4:
		return (b.Open + b.High + b.Low + b.Close) / 4
	}
	return math.NaN()
}
