// Package signal defines the order instructions strategy logic hands to the
// trade engine, and the equity-percent position adapter.
package signal

import (
	"fmt"
	"math"

	"tradesim/internal/incr"
	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/trade"
)

// Kind selects which payload fields of a Signal are meaningful.
type Kind int

const (
	// KindHold: no action.
	KindHold Kind = iota
	// KindFixed: Size is an absolute number of contracts.
	KindFixed
	// KindEquityPct: Size is a fraction of current equity.
	KindEquityPct
	// KindCloseAll: flatten every open trade.
	KindCloseAll
)

func (k Kind) String() string {
	switch k {
	case KindHold:
		return "hold"
	case KindFixed:
		return "fixed"
	case KindEquityPct:
		return "equity_pct"
	case KindCloseAll:
		return "close_all"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Signal is a closed sum type; build it with Hold, Order, Percent or CloseAll.
type Signal struct {
	Kind      Kind            `json:"kind"`
	Direction trade.Direction `json:"direction,omitempty"`
	Size      float64         `json:"size,omitempty"`
	ID        string          `json:"id,omitempty"`
	Comment   string          `json:"comment,omitempty"`
}

func Hold() Signal { return Signal{Kind: KindHold} }

// Order requests size contracts in dir.
func Order(dir trade.Direction, size float64) Signal {
	return Signal{Kind: KindFixed, Direction: dir, Size: size}
}

// Percent requests a position worth pct of equity in dir.
func Percent(dir trade.Direction, pct float64) Signal {
	return Signal{Kind: KindEquityPct, Direction: dir, Size: pct}
}

func CloseAll() Signal { return Signal{Kind: KindCloseAll} }

// WithID returns a copy tagged with an order id and comment.
func (s Signal) WithID(id, comment string) Signal {
	s.ID, s.Comment = id, comment
	return s
}

func (s Signal) IsHold() bool { return s.Kind == KindHold }

func (s Signal) String() string {
	switch s.Kind {
	case KindHold, KindCloseAll:
		return s.Kind.String()
	}
	return fmt.Sprintf("%s %s %g", s.Kind, s.Direction, s.Size)
}

// Target is one bar's input to EquityPercent. Pct is signed: positive for a
// long exposure, negative for short, 0 for flat. Position is the current
// signed position size in contracts.
type Target struct {
	Pct      float64
	Equity   float64
	Price    float64
	Position float64
}

// EquityPercent turns a target exposure into the order that moves the current
// position onto it. It only acts when the target changes: a repeated target
// yields Hold even if the position has since drifted.
type EquityPercent struct {
	instrument   model.Instrument
	exchangeRate float64
	last         float64
	started      bool
}

var _ incr.Step[Target, Signal] = (*EquityPercent)(nil)

// NewEquityPercent sizes orders for inst with an exchange rate of 1.
func NewEquityPercent(inst model.Instrument) *EquityPercent {
	return &EquityPercent{instrument: inst, exchangeRate: 1}
}

// WithExchangeRate converts account currency into instrument currency.
func (a *EquityPercent) WithExchangeRate(rate float64) *EquityPercent {
	a.exchangeRate = rate
	return a
}

func (a *EquityPercent) Step(t Target) Signal {
	// an unpriceable bar does not consume the target
	if na.Any(t.Pct, t.Equity, t.Price, t.Position) {
		return Hold()
	}
	if a.started && t.Pct == a.last {
		return Hold()
	}
	a.last, a.started = t.Pct, true

	size := trade.OrderSize(math.Abs(t.Pct), t.Equity, a.exchangeRate, t.Price, a.instrument.Points())
	if t.Pct < 0 {
		size = -size
	}
	delta := trade.RoundContracts(size-t.Position, a.instrument.LotSize)
	if na.Is(delta) || delta == 0 {
		return Hold()
	}
	if delta > 0 {
		return Order(trade.Long, delta)
	}
	return Order(trade.Short, -delta)
}
