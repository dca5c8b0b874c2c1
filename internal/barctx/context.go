// Package barctx drives the simulated clock over a data.Provider.
//
// A Context owns a cursor into shared, read-only bar data. Primitives read the
// current bar and its history through it; the cursor only moves forward.
package barctx

import (
	"errors"
	"fmt"

	"tradesim/internal/data"
	"tradesim/internal/model"
)

// ErrLookback is returned when a lookback reaches before the first tick or the
// context has not started yet.
var ErrLookback = errors.New("barctx: lookback beyond available history")

// Context is the bar-iteration cursor for one run.
// It is not safe for concurrent use; fork it instead.
type Context struct {
	provider   data.Provider
	instrument model.Instrument

	index     int  // current tick; meaningful only once started
	started   bool // false before the first Advance, even though index is 0
	exhausted bool
}

// New creates a context positioned before the provider's first tick.
func New(p data.Provider) *Context {
	return &Context{
		provider:   p,
		instrument: p.Instrument(),
	}
}

// WithInstrument overrides the instrument metadata (tick/lot size) the
// provider reports.
func (c *Context) WithInstrument(inst model.Instrument) *Context {
	c.instrument = inst
	return c
}

// Advance moves to the first tick on the first call and to the next tick on
// every later call. ok is false once the cursor has moved past LastTick; an
// exhausted context stays exhausted.
func (c *Context) Advance() (index int, ok bool) {
	if c.exhausted {
		return c.index, false
	}
	if !c.started {
		c.started = true
		c.index = c.provider.FirstTick()
	} else {
		c.index++
	}
	if c.index > c.provider.LastTick() {
		c.exhausted = true
		c.index = c.provider.LastTick()
		return c.index, false
	}
	return c.index, true
}

// Seek advances until the cursor sits on tick. Seeking backwards is a caller
// contract violation and panics.
func (c *Context) Seek(tick int) bool {
	if c.started && tick < c.index {
		panic(fmt.Sprintf("barctx: seek to %d behind current tick %d", tick, c.index))
	}
	for !c.started || c.index < tick {
		if _, ok := c.Advance(); !ok {
			return false
		}
	}
	return true
}

// Fork returns an independent context at the same position that shares the
// same underlying data. Primitives attached to the original are not copied;
// callers build fresh ones for the fork.
func (c *Context) Fork() *Context {
	cp := *c
	return &cp
}

// Index returns the current tick. It is 0 both before the first Advance and at
// tick 0; use Started to tell them apart.
func (c *Context) Index() int {
	if !c.started {
		return 0
	}
	return c.index
}

// Started reports whether Advance has been called at least once.
func (c *Context) Started() bool { return c.started }

// Exhausted reports whether Advance has run past the last tick.
func (c *Context) Exhausted() bool { return c.exhausted }

// BarsSeen returns how many bars have been visited, including the current one.
func (c *Context) BarsSeen() int {
	if !c.started {
		return 0
	}
	return c.index - c.provider.FirstTick() + 1
}

// Provider returns the shared data source.
func (c *Context) Provider() data.Provider { return c.provider }

// Instrument returns the instrument metadata used for rounding.
func (c *Context) Instrument() model.Instrument { return c.instrument }

// Current returns the bar under the cursor. Before the first Advance it
// returns a bar of NaN values.
func (c *Context) Current() model.Bar {
	if !c.started {
		return model.NaBar(0)
	}
	return data.BarAt(c.provider, c.index)
}

// At returns the bar lookback ticks before the current one (0 = current).
func (c *Context) At(lookback int) (model.Bar, error) {
	if !c.started || lookback < 0 || lookback >= c.BarsSeen() {
		return model.Bar{}, fmt.Errorf("%w: lookback %d with %d bars seen", ErrLookback, lookback, c.BarsSeen())
	}
	return data.BarAt(c.provider, c.index-lookback), nil
}

// Value returns field f of the bar lookback ticks back, or NaN when that bar
// is not available. Primitives use this instead of At.
func (c *Context) Value(f model.Field, lookback int) float64 {
	b, err := c.At(lookback)
	if err != nil {
		return model.NaBar(0).Close
	}
	return b.Value(f)
}

func (c *Context) Open(lookback int) float64   { return c.Value(model.FieldOpen, lookback) }
func (c *Context) High(lookback int) float64   { return c.Value(model.FieldHigh, lookback) }
func (c *Context) Low(lookback int) float64    { return c.Value(model.FieldLow, lookback) }
func (c *Context) Close(lookback int) float64  { return c.Value(model.FieldClose, lookback) }
func (c *Context) Volume(lookback int) float64 { return c.Value(model.FieldVolume, lookback) }
