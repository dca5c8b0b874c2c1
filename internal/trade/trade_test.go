package trade

import (
	"math"
	"testing"
	"time"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

func mustPanic(t *testing.T, label string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", label)
		}
	}()
	fn()
}

var t0 = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)

func TestTrade_LongLifecycle(t *testing.T) {
	tr := New(Long, 10)
	tr.Entry(100, "L1", 3, t0, "go long")
	assertClose(t, "unrealized", tr.UpdateProfit(110), 100, 1e-9)

	tr.Close(90, "X1", 7, t0.Add(time.Hour), "stop")
	if !tr.Closed() {
		t.Fatal("trade not closed")
	}
	assertClose(t, "realized", tr.Profit(), -100, 1e-9)
	if tr.ExitPoint().Bar != 7 || tr.EntryPoint().ID != "L1" {
		t.Fatalf("points: entry=%+v exit=%+v", tr.EntryPoint(), tr.ExitPoint())
	}
}

func TestTrade_ShortProfit(t *testing.T) {
	tr := New(Short, 2).WithPointValue(50)
	tr.Entry(100, "S", 0, t0, "")
	assertClose(t, "short gain", tr.UpdateProfit(95), 500, 1e-9)
	lo, hi := tr.ProfitRange(90, 104)
	assertClose(t, "worst", lo, -400, 1e-9)
	assertClose(t, "best", hi, 1000, 1e-9)
}

func TestTrade_Preconditions(t *testing.T) {
	mustPanic(t, "zero size", func() { New(Long, 0) })
	mustPanic(t, "negative size", func() { New(Short, -1) })
	mustPanic(t, "NaN size", func() { New(Long, math.NaN()) })
	mustPanic(t, "bad direction", func() { New(0, 1) })

	mustPanic(t, "profit before entry", func() { New(Long, 1).UpdateProfit(1) })
	mustPanic(t, "close before entry", func() { New(Long, 1).Close(1, "", 0, t0, "") })

	tr := New(Long, 1)
	tr.Entry(1, "", 0, t0, "")
	mustPanic(t, "double entry", func() { tr.Entry(1, "", 0, t0, "") })
	tr.Close(2, "", 1, t0, "")
	mustPanic(t, "double close", func() { tr.Close(2, "", 1, t0, "") })
	mustPanic(t, "profit after close", func() { tr.UpdateProfit(3) })
	mustPanic(t, "entry after close", func() { tr.Entry(1, "", 0, t0, "") })
}

func TestTrade_Split(t *testing.T) {
	tr := New(Long, 10)
	tr.Entry(100, "L", 1, t0, "")
	part, rest := tr.Split(4)
	if part.Size() != 4 || rest.Size() != 6 {
		t.Fatalf("sizes %v/%v", part.Size(), rest.Size())
	}
	if part.EntryPoint() != tr.EntryPoint() || rest.EntryPoint() != tr.EntryPoint() {
		t.Fatal("split must keep the entry point")
	}
	part.Close(110, "X", 2, t0, "")
	assertClose(t, "part profit", part.Profit(), 40, 1e-9)
	mustPanic(t, "split too large", func() { rest.Split(6) })
}

func TestTrade_Record(t *testing.T) {
	tr := New(Short, 1)
	tr.Entry(10, "S", 0, t0, "")
	if r := tr.Record(); r.Exit != nil || r.Direction != "short" {
		t.Fatalf("open record %+v", r)
	}
	tr.Close(8, "X", 1, t0, "")
	r := tr.Record()
	if r.Exit == nil || r.Exit.Price != 8 || r.Profit != 2 {
		t.Fatalf("closed record %+v", r)
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"long": Long, "buy": Long, "short": Short, "SELL": Short} {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Errorf("%q: got %v err %v", in, got, err)
		}
	}
	if _, err := ParseDirection("flat"); err == nil {
		t.Error("expected error")
	}
	if Long.Opposite() != Short {
		t.Error("opposite")
	}
}
