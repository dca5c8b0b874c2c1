package data

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"tradesim/internal/model"
)

// ErrEmpty is returned when a provider would contain no bars.
var ErrEmpty = errors.New("data: no bars")

// Compile-time interface check.
var _ Provider = (*Memory)(nil)

// Memory is a column-oriented in-memory Provider. Once built it is never
// mutated, so it is safe to share between goroutines.
type Memory struct {
	instrument model.Instrument
	timeframe  time.Duration

	open, high, low, close, volume []float64
	times                          []time.Time // nil when the source has no timestamps
}

// NewMemory builds a provider from bars ordered by time. Bars with a zero
// Time are accepted only when every bar lacks a timestamp.
func NewMemory(inst model.Instrument, timeframe time.Duration, bars []model.Bar) (*Memory, error) {
	if len(bars) == 0 {
		return nil, ErrEmpty
	}
	m := &Memory{
		instrument: inst,
		timeframe:  timeframe,
		open:       make([]float64, len(bars)),
		high:       make([]float64, len(bars)),
		low:        make([]float64, len(bars)),
		close:      make([]float64, len(bars)),
		volume:     make([]float64, len(bars)),
	}
	withTime := bars[0].HasTime
	if withTime {
		m.times = make([]time.Time, len(bars))
	}
	for i, b := range bars {
		if b.HasTime != withTime {
			return nil, fmt.Errorf("data: bar %d: mixed timestamped and untimestamped bars", i)
		}
		if withTime {
			if i > 0 && !b.Time.After(m.times[i-1]) {
				return nil, fmt.Errorf("data: bar %d: time %s not after previous %s", i, b.Time, m.times[i-1])
			}
			m.times[i] = b.Time.UTC()
		}
		m.open[i], m.high[i], m.low[i], m.close[i], m.volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	return m, nil
}

// FromCloses builds an untimestamped provider whose OHLC all equal the closes.
// Handy for tests and for feeding plain series through the engine.
func FromCloses(inst model.Instrument, closes []float64) (*Memory, error) {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Index: i, Open: c, High: c, Low: c, Close: c}
	}
	return NewMemory(inst, 0, bars)
}

func (m *Memory) FirstTick() int { return 0 }
func (m *Memory) LastTick() int  { return len(m.close) - 1 }

func (m *Memory) Open(i int) float64   { return m.open[i] }
func (m *Memory) High(i int) float64   { return m.high[i] }
func (m *Memory) Low(i int) float64    { return m.low[i] }
func (m *Memory) Close(i int) float64  { return m.close[i] }
func (m *Memory) Volume(i int) float64 { return m.volume[i] }

func (m *Memory) OpenRange(from, to int) []float64   { return m.open[from : to+1] }
func (m *Memory) HighRange(from, to int) []float64   { return m.high[from : to+1] }
func (m *Memory) LowRange(from, to int) []float64    { return m.low[from : to+1] }
func (m *Memory) CloseRange(from, to int) []float64  { return m.close[from : to+1] }
func (m *Memory) VolumeRange(from, to int) []float64 { return m.volume[from : to+1] }

func (m *Memory) Time(i int) (time.Time, bool) {
	if m.times == nil {
		return time.Time{}, false
	}
	return m.times[i], true
}

// FindTick binary-searches the tick whose interval contains unixSeconds.
// With a zero timeframe the interval of tick i extends to the next tick.
func (m *Memory) FindTick(unixSeconds int64) (int, bool) {
	if m.times == nil {
		return 0, false
	}
	ts := time.Unix(unixSeconds, 0).UTC()
	// first tick that opens strictly after ts; the candidate is the one before it
	i := sort.Search(len(m.times), func(k int) bool { return m.times[k].After(ts) }) - 1
	if i < 0 {
		return 0, false
	}
	end := m.intervalEnd(i)
	if !end.IsZero() && !ts.Before(end) {
		return 0, false
	}
	return i, true
}

func (m *Memory) intervalEnd(i int) time.Time {
	if m.timeframe > 0 {
		return m.times[i].Add(m.timeframe)
	}
	if i+1 < len(m.times) {
		return m.times[i+1]
	}
	return time.Time{} // open-ended last bar
}

func (m *Memory) Timeframe() time.Duration     { return m.timeframe }
func (m *Memory) Instrument() model.Instrument { return m.instrument }
