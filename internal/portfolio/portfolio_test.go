package portfolio

import (
	"encoding/json"
	"math"
	"testing"

	"tradesim/internal/model"
	"tradesim/internal/signal"
	"tradesim/internal/trade"
)

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

func bar(i int, c float64) model.Bar {
	return model.Bar{Index: i, Open: c, High: c + 1, Low: c - 1, Close: c}
}

func newBook(capital float64) *Book {
	inst := model.NewInstrument("TEST")
	inst.LotSize = 1
	return NewBook(inst, Options{Capital: capital})
}

// ────────────────────────────────────────────────────────────
// EquityMetrics
// ────────────────────────────────────────────────────────────

func TestEquityMetrics_ClosedWinner(t *testing.T) {
	m := NewEquityMetrics(10000)
	tr := trade.New(trade.Long, 10)
	tr.Entry(100, "L", 0, bar(0, 100).Time, "")

	m.Update(bar(0, 100), 0, []*trade.Trade{tr}, false)
	assertClose(t, "equity while flat mark", m.Equity, 10000)

	tr.Close(150, "X", 1, bar(1, 150).Time, "")
	m.Update(bar(1, 150), tr.Profit(), nil, true)

	assertClose(t, "net equity", m.NetEquity, 10500)
	if m.NetEquityMax < 10500 {
		t.Fatalf("net equity max %v < 10500", m.NetEquityMax)
	}
	assertClose(t, "equity", m.Equity, 10500)
	assertClose(t, "bar equity min (flat)", m.BarEquityMin, 10500)
}

func TestEquityMetrics_OpenProfitRange(t *testing.T) {
	m := NewEquityMetrics(1000)
	long := trade.New(trade.Long, 2)
	long.Entry(50, "L", 0, bar(0, 50).Time, "")
	m.Update(model.Bar{Low: 45, High: 58, Close: 52}, 0, []*trade.Trade{long}, false)

	assertClose(t, "open profit", m.OpenProfit, 4)
	assertClose(t, "open min", m.OpenProfitMin, -10)
	assertClose(t, "open max", m.OpenProfitMax, 16)
	assertClose(t, "bar equity min", m.BarEquityMin, 990)
	assertClose(t, "bar equity max", m.BarEquityMax, 1016)
	// net equity only moves on exits
	assertClose(t, "net equity", m.NetEquity, 1000)

	short := trade.New(trade.Short, 1)
	short.Entry(50, "S", 0, bar(0, 50).Time, "")
	m2 := NewEquityMetrics(1000)
	m2.Update(model.Bar{Low: 45, High: 58, Close: 52}, 0, []*trade.Trade{short}, false)
	assertClose(t, "short open min", m2.OpenProfitMin, -8)
	assertClose(t, "short open max", m2.OpenProfitMax, 5)
}

func TestEquityMetrics_Drawdown(t *testing.T) {
	m := NewEquityMetrics(100)
	m.Update(bar(0, 0), 20, nil, true)  // 120
	m.Update(bar(1, 0), -10, nil, true) // 90
	assertClose(t, "max dd", m.MaxDrawdown, 30)
	assertClose(t, "max dd pct", m.MaxDrawdownPct, 25)
	assertClose(t, "equity min", m.EquityMin, 90)
	assertClose(t, "net min", m.NetEquityMin, 90)
}

// ────────────────────────────────────────────────────────────
// Book
// ────────────────────────────────────────────────────────────

func TestBook_RoundTrip(t *testing.T) {
	b := newBook(10000)
	b.Execute(signal.Order(trade.Long, 10), bar(0, 100))
	b.Mark(bar(0, 100))
	if b.Position() != 10 {
		t.Fatalf("position %v", b.Position())
	}
	b.Mark(bar(1, 110))
	assertClose(t, "open profit", b.OpenTrades()[0].Profit(), 100)

	b.Execute(signal.CloseAll(), bar(2, 150))
	b.Mark(bar(2, 150))
	m := b.Metrics()
	assertClose(t, "net equity", m.NetEquity, 10500)
	if m.NetEquityMax < 10500 {
		t.Fatalf("net equity max %v", m.NetEquityMax)
	}
	if len(b.Fills()) != 2 || len(b.Curve()) != 3 {
		t.Fatalf("fills=%d curve=%d", len(b.Fills()), len(b.Curve()))
	}
}

func TestBook_FIFOPartialClose(t *testing.T) {
	b := newBook(100000)
	b.Execute(signal.Order(trade.Long, 5), bar(0, 100))
	b.Execute(signal.Order(trade.Long, 5), bar(1, 110)) // pyramid
	if len(b.OpenTrades()) != 2 {
		t.Fatalf("open trades %d", len(b.OpenTrades()))
	}

	b.Execute(signal.Order(trade.Short, 7), bar(2, 120))
	closed := b.ClosedTrades()
	if len(closed) != 2 {
		t.Fatalf("closed %d, want 2", len(closed))
	}
	assertClose(t, "first closed whole", closed[0].Profit(), 100)
	assertClose(t, "split part", closed[1].Profit(), 20)

	open := b.OpenTrades()
	if len(open) != 1 || open[0].Size() != 3 || open[0].EntryPoint().Price != 110 {
		t.Fatalf("remainder %+v", open[0].Record())
	}
	assertClose(t, "position", b.Position(), 3)
	assertClose(t, "realized", b.Realized(), 120)
}

func TestBook_Reversal(t *testing.T) {
	b := newBook(10000)
	b.Execute(signal.Order(trade.Long, 2), bar(0, 10))
	b.Execute(signal.Order(trade.Short, 5), bar(1, 12))
	assertClose(t, "position", b.Position(), -3)
	if b.OpenTrades()[0].Direction() != trade.Short {
		t.Fatal("expected a new short")
	}
	assertClose(t, "realized", b.Realized(), 4)
}

func TestBook_EquityPctAndLot(t *testing.T) {
	inst := model.NewInstrument("TEST")
	inst.LotSize = 10
	b := NewBook(inst, Options{Capital: 10000})
	b.Execute(signal.Percent(trade.Long, 0.5), bar(0, 33)) // 151.5 -> 150
	assertClose(t, "position", b.Position(), 150)

	if fills := b.Execute(signal.Order(trade.Long, 4), bar(1, 33)); len(fills) != 0 {
		t.Fatal("order under half a lot should be ignored")
	}
	if fills := b.Execute(signal.Hold(), bar(1, 33)); fills != nil {
		t.Fatal("hold produced fills")
	}
}

func TestBook_SlippageAndTick(t *testing.T) {
	inst := model.NewInstrument("TEST")
	inst.MinTick = 0.05
	b := NewBook(inst, Options{Capital: 1000, SlippageBps: 10})
	f := b.Execute(signal.Order(trade.Long, 1), bar(0, 100))
	assertClose(t, "buy fill", f[0].Price, 100.1)
	f = b.Execute(signal.Order(trade.Short, 1), bar(1, 100))
	assertClose(t, "sell fill", f[0].Price, 99.9)
	assertClose(t, "slippage", f[0].Slippage, 0.1)
}

func TestBook_RiskLimits(t *testing.T) {
	inst := model.NewInstrument("TEST")
	b := NewBook(inst, Options{Capital: 1000, Risk: RiskLimits{MaxPosition: 5}})
	if fills := b.Execute(signal.Order(trade.Long, 6), bar(0, 10)); len(fills) != 0 {
		t.Fatal("oversized order accepted")
	}
	n, reason := b.Rejected()
	if n != 1 || reason == "" {
		t.Fatalf("rejected=%d reason=%q", n, reason)
	}
	b.Execute(signal.Order(trade.Long, 5), bar(1, 10))
	// reducing is always allowed
	if fills := b.Execute(signal.Order(trade.Short, 2), bar(2, 10)); len(fills) != 1 {
		t.Fatal("reduce rejected")
	}
}

func TestBook_Summary(t *testing.T) {
	b := newBook(1000)
	b.Execute(signal.Order(trade.Long, 1), bar(0, 100))
	b.Execute(signal.CloseAll(), bar(1, 130))
	b.Execute(signal.Order(trade.Short, 1), bar(2, 130))
	b.Execute(signal.CloseAll(), bar(3, 140))
	b.Mark(bar(3, 140))

	s := b.Summary()
	if s.TotalTrades != 2 || s.Wins != 1 || s.Losses != 1 {
		t.Fatalf("counts %+v", s)
	}
	assertClose(t, "net", s.NetProfit, 20)
	assertClose(t, "return", s.TotalReturn, 2)
	assertClose(t, "win rate", s.WinRate, 50)
	assertClose(t, "profit factor", s.ProfitFactor, 3)
	if len(b.Records()) != 2 {
		t.Fatalf("records %d", len(b.Records()))
	}
	// a single mark has no returns
	assertClose(t, "sharpe", s.Sharpe, 0)
}

func TestBook_SummarySharpe(t *testing.T) {
	b := newBook(1000)
	b.Execute(signal.Order(trade.Long, 1), bar(0, 100))
	for i, c := range []float64{100, 110, 115, 130} {
		b.Mark(bar(i, c))
	}
	// returns 0.01, 0.00495..., 0.01478...
	w := []float64{10.0 / 1000, 5.0 / 1010, 15.0 / 1015}
	mean := (w[0] + w[1] + w[2]) / 3
	var ss float64
	for _, r := range w {
		ss += (r - mean) * (r - mean)
	}
	assertClose(t, "sharpe", b.Summary().Sharpe, mean/math.Sqrt(ss/2))

	flat := newBook(1000)
	for i := 0; i < 4; i++ {
		flat.Mark(bar(i, 100))
	}
	assertClose(t, "flat sharpe", flat.Summary().Sharpe, 0)
}

// ────────────────────────────────────────────────────────────
// Bars without a close
// ────────────────────────────────────────────────────────────

func nanBar(i int) model.Bar {
	nan := math.NaN()
	return model.Bar{Index: i, Open: nan, High: nan, Low: nan, Close: nan}
}

func TestBook_NaNCloseDoesNotFill(t *testing.T) {
	inst := model.NewInstrument("TEST")
	inst.MinTick = 0.25
	b := NewBook(inst, Options{Capital: 10000})

	if f := b.Execute(signal.Order(trade.Long, 1), nanBar(0)); len(f) != 0 {
		t.Fatalf("order filled on missing close: %+v", f)
	}
	if f := b.Execute(signal.Percent(trade.Long, 0.5), nanBar(0)); len(f) != 0 {
		t.Fatalf("percent order filled on missing close: %+v", f)
	}
	b.Mark(bar(1, 100))
	assertClose(t, "equity", b.Metrics().Equity, 10000)

	b.Execute(signal.Order(trade.Long, 1), bar(2, 100))
	if f := b.Execute(signal.CloseAll(), nanBar(3)); len(f) != 0 {
		t.Fatalf("close-all filled on missing close: %+v", f)
	}
	if b.Position() != 1 {
		t.Fatalf("position %v", b.Position())
	}
}

func TestBook_NaNCloseKeepsMetrics(t *testing.T) {
	b := newBook(10000)
	b.Execute(signal.Order(trade.Long, 1), bar(0, 100))
	b.Mark(bar(0, 100))
	b.Mark(nanBar(1))
	for i, c := range []float64{101, 98, 104} {
		b.Mark(bar(i+2, c))
	}

	m := b.Metrics()
	assertClose(t, "equity", m.Equity, 10004)
	assertClose(t, "equity min", m.EquityMin, 9998)
	assertClose(t, "equity max", m.EquityMax, 10004)
	assertClose(t, "drawdown pct", m.DrawdownPct(), 0)
	assertClose(t, "open profit", b.OpenTrades()[0].Profit(), 4)

	curve := b.Curve()
	if len(curve) != 5 {
		t.Fatalf("curve len %d", len(curve))
	}
	assertClose(t, "repeated point", curve[1].Equity, 10000)
	if _, err := json.Marshal(curve); err != nil {
		t.Fatalf("marshal curve: %v", err)
	}
	if _, err := json.Marshal(b.Summary()); err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
}

func TestEquityMetrics_MissingLowHigh(t *testing.T) {
	m := NewEquityMetrics(1000)
	long := trade.New(trade.Long, 2)
	long.Entry(50, "L", 0, bar(0, 50).Time, "")
	m.Update(model.Bar{Low: math.NaN(), High: math.NaN(), Close: 52}, 0, []*trade.Trade{long}, false)
	assertClose(t, "open min", m.OpenProfitMin, 4)
	assertClose(t, "open max", m.OpenProfitMax, 4)
}

func TestNewBook_PanicsOnCapital(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewBook(model.NewInstrument("X"), Options{})
}

func TestRiskLimits_CanTrade(t *testing.T) {
	l := RiskLimits{MaxOpenTrades: 1, MaxDrawdownPct: 10}
	if ok, _ := l.CanTrade(0, 1, 1, 0); ok {
		t.Error("open trade limit not enforced")
	}
	if ok, _ := l.CanTrade(0, 1, 0, 11); ok {
		t.Error("drawdown limit not enforced")
	}
	if ok, _ := l.CanTrade(3, -1, 5, 50); ok {
		t.Error("flip through zero adds exposure")
	}
	if ok, _ := l.CanTrade(3, 1, 5, 50); !ok {
		t.Error("reduction refused")
	}
}
