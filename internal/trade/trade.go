// Package trade implements the single-trade state machine and the order
// sizing and rounding arithmetic used to turn signals into trades.
//
// A Trade is created with a direction and a size, entered exactly once and
// closed at most once. Violating that lifecycle panics: it is a caller bug,
// not a data condition.
package trade

import (
	"fmt"
	"time"

	"tradesim/internal/na"
)

// Direction of a trade. The value doubles as the profit sign.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) Sign() float64 { return float64(d) }

func (d Direction) Opposite() Direction { return -d }

func (d Direction) Valid() bool { return d == Long || d == Short }

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "invalid"
}

// ParseDirection accepts "long"/"buy" and "short"/"sell".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "long", "buy", "LONG", "BUY":
		return Long, nil
	case "short", "sell", "SHORT", "SELL":
		return Short, nil
	}
	return 0, fmt.Errorf("trade: unknown direction %q", s)
}

// Point is one side (entry or exit) of a trade.
type Point struct {
	ID      string    `json:"id"`
	Bar     int       `json:"bar"`
	Price   float64   `json:"price"`
	Time    time.Time `json:"time"`
	Comment string    `json:"comment,omitempty"`
}

// Trade is a single position leg.
type Trade struct {
	dir        Direction
	size       float64
	pointValue float64

	entry   Point
	exit    Point
	entered bool
	closed  bool
	profit  float64
}

// New creates an un-entered trade. It panics when size is not > 0 or the
// direction is invalid.
func New(dir Direction, size float64) *Trade {
	if !dir.Valid() {
		panic(fmt.Sprintf("trade: invalid direction %d", dir))
	}
	if na.Is(size) || size <= 0 {
		panic(fmt.Sprintf("trade: size must be > 0, got %v", size))
	}
	return &Trade{dir: dir, size: size, pointValue: 1}
}

// WithPointValue sets the currency value of one price point. Only valid
// before entry.
func (t *Trade) WithPointValue(pv float64) *Trade {
	if t.entered {
		panic("trade: point value set after entry")
	}
	if !na.Is(pv) && pv > 0 {
		t.pointValue = pv
	}
	return t
}

// Entry opens the trade.
func (t *Trade) Entry(price float64, id string, bar int, at time.Time, comment string) {
	if t.closed {
		panic("trade: entry on a closed trade")
	}
	if t.entered {
		panic("trade: entered twice")
	}
	t.entry = Point{ID: id, Bar: bar, Price: price, Time: at, Comment: comment}
	t.entered = true
	t.profit = 0
}

// UpdateProfit marks the open trade to price.
func (t *Trade) UpdateProfit(price float64) float64 {
	if !t.entered {
		panic("trade: profit update before entry")
	}
	if t.closed {
		panic("trade: profit update after close")
	}
	t.profit = t.ProfitAt(price)
	return t.profit
}

// Close marks the trade to price and freezes it.
func (t *Trade) Close(price float64, id string, bar int, at time.Time, comment string) {
	if t.closed {
		panic("trade: closed twice")
	}
	if !t.entered {
		panic("trade: close before entry")
	}
	t.UpdateProfit(price)
	t.exit = Point{ID: id, Bar: bar, Price: price, Time: at, Comment: comment}
	t.closed = true
}

// ProfitAt is the profit the trade would show at price. It does not mutate.
func (t *Trade) ProfitAt(price float64) float64 {
	return (price - t.entry.Price) * t.size * t.dir.Sign() * t.pointValue
}

// ProfitRange evaluates the open trade at the bar's extremes and returns
// (worst, best).
func (t *Trade) ProfitRange(low, high float64) (float64, float64) {
	lo, hi := t.ProfitAt(low), t.ProfitAt(high)
	if t.dir == Short {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Split divides an entered, open trade into two open trades sharing the
// original entry point: part of the given size and the remainder.
func (t *Trade) Split(size float64) (part, rest *Trade) {
	if !t.entered || t.closed {
		panic("trade: split requires an open trade")
	}
	if na.Is(size) || size <= 0 || size >= t.size {
		panic(fmt.Sprintf("trade: split size %v outside (0, %v)", size, t.size))
	}
	part = &Trade{dir: t.dir, size: size, pointValue: t.pointValue, entry: t.entry, entered: true}
	rest = &Trade{dir: t.dir, size: t.size - size, pointValue: t.pointValue, entry: t.entry, entered: true}
	return part, rest
}

func (t *Trade) Direction() Direction { return t.dir }
func (t *Trade) Size() float64        { return t.size }
func (t *Trade) PointValue() float64  { return t.pointValue }
func (t *Trade) EntryPoint() Point    { return t.entry }
func (t *Trade) ExitPoint() Point     { return t.exit }
func (t *Trade) Entered() bool        { return t.entered }
func (t *Trade) Closed() bool         { return t.closed }
func (t *Trade) Profit() float64      { return t.profit }

// Signed is the size with the direction applied.
func (t *Trade) Signed() float64 { return t.size * t.dir.Sign() }

// Record is the serializable view of a trade.
type Record struct {
	Direction string  `json:"direction"`
	Size      float64 `json:"size"`
	Entry     Point   `json:"entry"`
	Exit      *Point  `json:"exit,omitempty"`
	Closed    bool    `json:"closed"`
	Profit    float64 `json:"profit"`
}

func (t *Trade) Record() Record {
	r := Record{
		Direction: t.dir.String(),
		Size:      t.size,
		Entry:     t.entry,
		Closed:    t.closed,
		Profit:    t.profit,
	}
	if t.closed {
		exit := t.exit
		r.Exit = &exit
	}
	return r
}
