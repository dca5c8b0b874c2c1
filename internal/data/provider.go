// Package data defines the read-only bar source the engine replays, and an
// in-memory implementation that every loader (SQLite, Parquet) produces.
package data

import (
	"time"

	"tradesim/internal/model"
)

// Provider is a random-access, read-only source of bars.
// Ticks are addressed by index in [FirstTick, LastTick]. Implementations
// must be safe for concurrent reads: forks of a context and parallel runs
// share one Provider.
type Provider interface {
	FirstTick() int
	LastTick() int

	Open(i int) float64
	High(i int) float64
	Low(i int) float64
	Close(i int) float64
	Volume(i int) float64

	// Range variants return values for ticks [from, to] inclusive.
	// The returned slices must be treated as read-only.
	OpenRange(from, to int) []float64
	HighRange(from, to int) []float64
	LowRange(from, to int) []float64
	CloseRange(from, to int) []float64
	VolumeRange(from, to int) []float64

	// Time returns the open time of tick i; ok is false when the provider
	// carries no timestamps.
	Time(i int) (t time.Time, ok bool)

	// FindTick returns the tick whose interval [Time(i), Time(i)+Timeframe)
	// contains unixSeconds.
	FindTick(unixSeconds int64) (tick int, ok bool)

	Timeframe() time.Duration
	Instrument() model.Instrument
}

// BarAt assembles the bar for tick i from p.
func BarAt(p Provider, i int) model.Bar {
	b := model.Bar{
		Index:  i,
		Open:   p.Open(i),
		High:   p.High(i),
		Low:    p.Low(i),
		Close:  p.Close(i),
		Volume: p.Volume(i),
	}
	if t, ok := p.Time(i); ok {
		b.Time = t
		b.HasTime = true
	}
	return b
}

// Len returns the number of ticks p serves.
func Len(p Provider) int {
	return p.LastTick() - p.FirstTick() + 1
}
