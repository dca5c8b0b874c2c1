// Package cross detects two series crossing each other.
//
// A detector keeps the previous pair it saw; it must be stepped exactly once
// per bar (through Step, Over or Under, never more than one of them). The
// first evaluation never reports a cross, and a NaN on either side of the
// current or previous pair suppresses detection for that bar.
package cross

import (
	"tradesim/internal/incr"
	"tradesim/internal/na"
)

// Mode is the outcome of one detector step.
type Mode int

const (
	None Mode = iota
	Over
	Under
)

func (m Mode) String() string {
	switch m {
	case Over:
		return "over"
	case Under:
		return "under"
	}
	return "none"
}

// Pair is one bar's (a, b) observation.
type Pair struct{ A, B float64 }

// Detector reports when A crosses B.
type Detector struct {
	prev    Pair
	started bool
}

var (
	_ incr.Step[Pair, Mode]    = (*Detector)(nil)
	_ incr.Step[float64, Mode] = (*Threshold)(nil)
)

func New() *Detector { return &Detector{} }

// Step returns Over when A moved from <= B to > B, Under when A moved from
// >= B to < B.
func (d *Detector) Step(p Pair) Mode {
	prev, started := d.prev, d.started
	d.prev, d.started = p, true
	if !started || na.Any(p.A, p.B, prev.A, prev.B) {
		return None
	}
	switch {
	case prev.A <= prev.B && p.A > p.B:
		return Over
	case prev.A >= prev.B && p.A < p.B:
		return Under
	}
	return None
}

// Over steps the detector and reports an upward cross.
func (d *Detector) Over(a, b float64) bool { return d.Step(Pair{a, b}) == Over }

// Under steps the detector and reports a downward cross.
func (d *Detector) Under(a, b float64) bool { return d.Step(Pair{a, b}) == Under }

// Threshold is a Detector whose B side is fixed.
type Threshold struct {
	level float64
	d     Detector
}

func NewThreshold(level float64) *Threshold { return &Threshold{level: level} }

func (t *Threshold) Step(a float64) Mode { return t.d.Step(Pair{a, t.level}) }

func (t *Threshold) Level() float64 { return t.level }

// Ordinal adapts the threshold to a float series of Mode ordinals, the form
// the feature set stores enums in.
func (t *Threshold) Ordinal() incr.Func[float64, float64] {
	return func(a float64) float64 { return float64(t.Step(a)) }
}
