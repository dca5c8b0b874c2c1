// Package portfolio executes signals against a simulated account and keeps
// the trade list, equity metrics and summary statistics of one run.
//
// A Book belongs to a single run and is not safe for concurrent use.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/signal"
	"tradesim/internal/trade"
)

// sizes below this are treated as zero after netting arithmetic
const sizeEpsilon = 1e-9

// Options configures a Book.
type Options struct {
	Capital      float64    `json:"capital" yaml:"capital"`
	ExchangeRate float64    `json:"exchange_rate" yaml:"exchange_rate"`
	SlippageBps  float64    `json:"slippage_bps" yaml:"slippage_bps"` // basis points, applied against the order
	Risk         RiskLimits `json:"risk" yaml:"risk"`
}

// Fill is one executed order.
type Fill struct {
	ID        string          `json:"id"`
	Bar       int             `json:"bar"`
	Time      time.Time       `json:"time"`
	Direction trade.Direction `json:"direction"`
	Size      float64         `json:"size"`
	Price     float64         `json:"price"`
	Slippage  float64         `json:"slippage"`
	Comment   string          `json:"comment,omitempty"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Bar       int       `json:"bar"`
	Time      time.Time `json:"time"`
	Equity    float64   `json:"equity"`
	NetEquity float64   `json:"net_equity"`
}

// Book nets orders into trades first-in first-out.
//
// An order against the open direction closes open trades oldest first; a
// trade larger than what is left of the order is split, the closed part
// leaving the book and the remainder staying open with its original entry.
// Whatever is left after netting opens a new trade. Orders in the open
// direction add a new trade (pyramiding).
type Book struct {
	inst model.Instrument
	opts Options

	open     []*trade.Trade
	closed   []*trade.Trade
	fills    []Fill
	curve    []EquityPoint
	realized float64
	metrics  EquityMetrics

	seq      int
	exited   bool
	rejected int
	lastRisk string
}

// NewBook creates a book trading inst. It panics on a non-positive capital.
func NewBook(inst model.Instrument, opts Options) *Book {
	if na.Is(opts.Capital) || opts.Capital <= 0 {
		panic(fmt.Sprintf("portfolio: capital must be > 0, got %v", opts.Capital))
	}
	if opts.ExchangeRate == 0 || na.Is(opts.ExchangeRate) {
		opts.ExchangeRate = 1
	}
	return &Book{
		inst:    inst,
		opts:    opts,
		open:    make([]*trade.Trade, 0, 8),
		closed:  make([]*trade.Trade, 0, 64),
		metrics: NewEquityMetrics(opts.Capital),
	}
}

// Position is the signed open size.
func (b *Book) Position() float64 {
	var pos float64
	for _, t := range b.open {
		pos += t.Signed()
	}
	return pos
}

// EquityAt is capital + realized + open profit marked at price.
func (b *Book) EquityAt(price float64) float64 {
	eq := b.opts.Capital + b.realized
	for _, t := range b.open {
		eq += t.ProfitAt(price)
	}
	return eq
}

// Execute fills sig at bar's close. It returns the fills it produced; a Hold,
// a zero-size order, one rejected by the risk limits or any order on a bar
// without a close produce none.
func (b *Book) Execute(sig signal.Signal, bar model.Bar) []Fill {
	if sig.Kind == signal.KindHold || na.Is(bar.Close) {
		return nil
	}
	start := len(b.fills)
	if sig.Kind == signal.KindCloseAll {
		for len(b.open) > 0 {
			t := b.open[0]
			b.closeTrade(t, b.fillPrice(t.Direction().Opposite(), bar.Close), bar, sig)
			b.open = b.open[1:]
		}
		return b.fills[start:]
	}

	size := sig.Size
	if sig.Kind == signal.KindEquityPct {
		equity := b.EquityAt(bar.Close)
		if equity <= 0 || na.Is(equity) {
			return nil
		}
		size = trade.OrderSize(sig.Size, equity, b.opts.ExchangeRate, bar.Close, b.inst.Points())
	}
	size = trade.RoundContracts(size, b.inst.LotSize)
	if na.Is(size) || size <= sizeEpsilon || !sig.Direction.Valid() {
		return nil
	}

	current := b.Position()
	next := current + size*sig.Direction.Sign()
	if ok, reason := b.opts.Risk.CanTrade(current, next, b.openAfter(sig.Direction, size), b.metrics.DrawdownPct()); !ok {
		b.rejected++
		b.lastRisk = reason
		return nil
	}

	price := b.fillPrice(sig.Direction, bar.Close)
	remaining := size
	for remaining > sizeEpsilon && len(b.open) > 0 && b.open[0].Direction() != sig.Direction {
		t := b.open[0]
		if t.Size() <= remaining+sizeEpsilon {
			b.closeTrade(t, price, bar, sig)
			b.open = b.open[1:]
			remaining -= t.Size()
			continue
		}
		part, rest := t.Split(remaining)
		b.closeTrade(part, price, bar, sig)
		b.open[0] = rest
		remaining = 0
	}
	if remaining > sizeEpsilon {
		t := trade.New(sig.Direction, remaining).WithPointValue(b.inst.Points())
		id := sig.ID
		if id == "" {
			id = b.nextID(sig.Direction)
		}
		t.Entry(price, id, bar.Index, bar.Time, sig.Comment)
		b.open = append(b.open, t)
		b.record(id, sig.Direction, remaining, price, bar, sig.Comment)
	}
	return b.fills[start:]
}

// Mark closes the bar: open trades are marked to the close and the equity
// metrics and curve are updated. Call once per bar after Execute. A bar
// without a close repeats the previous snapshot on the curve.
func (b *Book) Mark(bar model.Bar) {
	if na.Is(bar.Close) {
		b.curve = append(b.curve, EquityPoint{
			Bar: bar.Index, Time: bar.Time,
			Equity: b.metrics.Equity, NetEquity: b.metrics.NetEquity,
		})
		return
	}
	for _, t := range b.open {
		t.UpdateProfit(bar.Close)
	}
	b.metrics.Update(bar, b.realized, b.open, b.exited)
	b.exited = false
	b.curve = append(b.curve, EquityPoint{
		Bar: bar.Index, Time: bar.Time,
		Equity: b.metrics.Equity, NetEquity: b.metrics.NetEquity,
	})
}

func (b *Book) closeTrade(t *trade.Trade, price float64, bar model.Bar, sig signal.Signal) {
	id := sig.ID
	if id == "" {
		id = b.nextID(t.Direction().Opposite())
	}
	t.Close(price, id, bar.Index, bar.Time, sig.Comment)
	b.realized += t.Profit()
	b.closed = append(b.closed, t)
	b.exited = true
	b.record(id, t.Direction().Opposite(), t.Size(), price, bar, sig.Comment)
}

func (b *Book) record(id string, dir trade.Direction, size, price float64, bar model.Bar, comment string) {
	b.fills = append(b.fills, Fill{
		ID: id, Bar: bar.Index, Time: bar.Time,
		Direction: dir, Size: size, Price: price,
		Slippage: math.Abs(price - bar.Close), Comment: comment,
	})
}

// fillPrice applies slippage against the order and rounds to the tick.
func (b *Book) fillPrice(dir trade.Direction, price float64) float64 {
	if b.opts.SlippageBps > 0 {
		price += price * b.opts.SlippageBps / 10000 * dir.Sign()
	}
	return trade.RoundToMinTick(price, b.inst.MinTick)
}

// openAfter counts the open trades that survive an order, for the
// max-open-trades limit.
func (b *Book) openAfter(dir trade.Direction, size float64) int {
	if len(b.open) == 0 || b.open[0].Direction() == dir {
		return len(b.open)
	}
	n := len(b.open)
	for _, t := range b.open {
		if size+sizeEpsilon < t.Size() {
			break
		}
		size -= t.Size()
		n--
	}
	return n
}

func (b *Book) nextID(dir trade.Direction) string {
	b.seq++
	return fmt.Sprintf("%s-%d", dir, b.seq)
}

func (b *Book) Instrument() model.Instrument { return b.inst }
func (b *Book) Options() Options             { return b.opts }
func (b *Book) Metrics() EquityMetrics       { return b.metrics }
func (b *Book) Realized() float64            { return b.realized }
func (b *Book) OpenTrades() []*trade.Trade   { return b.open }
func (b *Book) ClosedTrades() []*trade.Trade { return b.closed }
func (b *Book) Fills() []Fill                { return b.fills }
func (b *Book) Curve() []EquityPoint         { return b.curve }

// Rejected is the number of orders refused by the risk limits, with the
// reason of the most recent refusal.
func (b *Book) Rejected() (int, string) { return b.rejected, b.lastRisk }

// Records returns every trade, closed first, as serializable records.
func (b *Book) Records() []trade.Record {
	out := make([]trade.Record, 0, len(b.closed)+len(b.open))
	for _, t := range b.closed {
		out = append(out, t.Record())
	}
	for _, t := range b.open {
		out = append(out, t.Record())
	}
	return out
}
