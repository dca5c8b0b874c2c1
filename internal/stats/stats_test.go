package stats

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func run(s Series, in ...float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = s.Step(v)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(want) {
		if !math.IsNaN(got) {
			t.Errorf("%s: got %.6f, want NaN", label, got)
		}
		return
	}
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (diff=%.6f)", label, got, want, math.Abs(got-want))
	}
}

func assertSeries(t *testing.T, label string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len %d, want %d", label, len(got), len(want))
	}
	for i := range want {
		assertClose(t, label+"["+itoa(i)+"]", got[i], want[i], 1e-9)
	}
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}

var nan = math.NaN()

// ────────────────────────────────────────────────────────────
// Sum / SMA
// ────────────────────────────────────────────────────────────

func TestSum_Sliding(t *testing.T) {
	got := run(NewSum(3), 1, 2, 3, 4, 10)
	assertSeries(t, "sum3", got, []float64{nan, nan, 6, 9, 17})
}

func TestSum_SkipsNaN(t *testing.T) {
	got := run(NewSum(2), 1, nan, 3, 4)
	assertSeries(t, "sum2", got, []float64{nan, 1, 3, 7})
}

func TestSMA_Closes(t *testing.T) {
	got := run(NewSMA(3), 1, 2, 3, 4, 5, 6, 7, 8)
	assertSeries(t, "sma3", got, []float64{nan, nan, 2, 3, 4, 5, 6, 7})
}

func TestSMA_ReadyFlag(t *testing.T) {
	s := NewSMA(2)
	s.Step(1)
	if s.Ready() {
		t.Fatal("ready after one value")
	}
	s.Step(2)
	if !s.Ready() || s.Value() != 1.5 {
		t.Fatalf("ready=%v value=%v", s.Ready(), s.Value())
	}
}

func TestMovingAverages_ConstantConverges(t *testing.T) {
	cases := map[string]Series{
		"sma":  NewSMA(5),
		"ema":  NewEMA(5),
		"rma":  NewRMA(5),
		"wma":  NewWMA(5),
		"hma":  NewHMA(5),
		"swma": NewSWMA(),
	}
	for name, s := range cases {
		var last float64
		for i := 0; i < 50; i++ {
			last = s.Step(7.25)
		}
		assertClose(t, name, last, 7.25, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// EMA / RMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeedThenRecurrence(t *testing.T) {
	// alpha = 0.5: seed SMA(1,2,3)=2, then 0.5*4+0.5*2=3, ...
	got := run(NewEMA(3), 1, 2, 3, 4, 5, 6)
	assertSeries(t, "ema3", got, []float64{nan, nan, 2, 3, 4, 5})
}

func TestRMA_SeedThenRecurrence(t *testing.T) {
	got := run(NewRMA(3), 1, 2, 3, 4)
	assertSeries(t, "rma3", got, []float64{nan, nan, 2, 8.0 / 3})
}

func TestSmoothed_AlphaAndNaN(t *testing.T) {
	s := NewEMA(4)
	assertClose(t, "alpha", s.Alpha(), 0.4, 1e-12)
	run(s, 1, 1, 1, 1)
	if v := s.Step(nan); !math.IsNaN(v) {
		t.Fatalf("NaN input gave %v", v)
	}
	// state survives the NaN bar
	assertClose(t, "after NaN", s.Step(2), 0.4*2+0.6*1, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Weighted family
// ────────────────────────────────────────────────────────────

func TestWMA(t *testing.T) {
	got := run(NewWMA(3), 1, 2, 3, 4)
	assertSeries(t, "wma3", got, []float64{nan, nan, 14.0 / 6, 20.0 / 6})
}

func TestSWMA(t *testing.T) {
	got := run(NewSWMA(), 1, 2, 3, 4)
	assertSeries(t, "swma", got, []float64{nan, nan, nan, 2.5})
}

func TestHMA_TracksLinearSeries(t *testing.T) {
	// On a straight line the Hull average has no lag once warm.
	got := run(NewHMA(4), 1, 2, 3, 4, 5, 6, 7, 8)
	assertSeries(t, "hma4", got, []float64{nan, nan, nan, nan, 5, 6, 7, 8})
}

// ────────────────────────────────────────────────────────────
// Variance
// ────────────────────────────────────────────────────────────

func TestWelford_MatchesTwoPass(t *testing.T) {
	data := []float64{3.1, 4.7, 1.2, 9.9, 5.5, 5.5, 0.3, 7.8}
	w := NewWelford()
	for _, v := range data {
		w.Push(v)
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	ss := 0.0
	for _, v := range data {
		ss += (v - mean) * (v - mean)
	}
	assertClose(t, "mean", w.Mean(), mean, 1e-9)
	assertClose(t, "variance", w.Variance(), ss/float64(len(data)-1), 1e-9)
	assertClose(t, "stdev", w.Stdev(), math.Sqrt(ss/float64(len(data)-1)), 1e-9)
}

func TestWelford_Edges(t *testing.T) {
	w := NewWelford()
	if !math.IsNaN(w.Mean()) {
		t.Fatal("mean of empty should be NaN")
	}
	if v := w.Step(5); v != 0 {
		t.Fatalf("variance at n=1: %v", v)
	}
	w.Push(nan)
	if w.Count() != 1 {
		t.Fatalf("NaN was counted: %d", w.Count())
	}
	s := NewStdev()
	run(s, 2, 4)
	assertClose(t, "stdev", s.Stdev(), math.Sqrt(2), 1e-12)
}

func TestWindowStdev(t *testing.T) {
	got := run(NewWindowStdev(3, true), 2, 4, 6, 6)
	assertSeries(t, "pop", got, []float64{nan, nan, math.Sqrt(8.0 / 3), math.Sqrt(8.0 / 9)})
	got = run(NewWindowStdev(3, false), 2, 4, 6)
	assertClose(t, "sample", got[2], 2, 1e-12)
}

// ────────────────────────────────────────────────────────────
// Extremes / rank / change
// ────────────────────────────────────────────────────────────

func TestHighestLowest(t *testing.T) {
	assertSeries(t, "highest", run(NewHighest(3), 1, 3, 2, 5, 4), []float64{nan, nan, 3, 5, 5})
	assertSeries(t, "lowest", run(NewLowest(3), 4, 3, 5, 1, 2), []float64{nan, nan, 3, 1, 1})
}

func TestHighest_NaNStopsScan(t *testing.T) {
	h := NewHighest(3)
	got := run(h, 9, nan, 1)
	assertClose(t, "stale history", got[2], 1, 0)

	got = run(NewHighest(3), 1, 2, nan)
	if !math.IsNaN(got[2]) {
		t.Fatalf("NaN current should give NaN, got %v", got[2])
	}
}

func TestHighest_TieAndOffset(t *testing.T) {
	h := NewHighest(3)
	run(h, 1, 5, 2)
	if h.Offset() != -1 {
		t.Fatalf("offset=%d, want -1", h.Offset())
	}
	run(h, 5)
	if h.Offset() != 0 {
		t.Fatalf("tie should prefer the current bar, offset=%d", h.Offset())
	}
	l := NewLowest(2)
	run(l, 3, 4)
	if l.Offset() != -1 || l.Value() != 3 {
		t.Fatalf("lowest offset=%d value=%v", l.Offset(), l.Value())
	}
}

func TestHighestLowestBars(t *testing.T) {
	assertSeries(t, "highestbars", run(NewHighestBars(3), 1, 3, 2, 5, 4, 4), []float64{nan, nan, -1, 0, -1, -2})
	assertSeries(t, "lowestbars", run(NewLowestBars(3), 4, 3, 5, 1, 2), []float64{nan, nan, -1, 0, -1})
	got := run(NewHighestBars(2), 1, nan)
	if !math.IsNaN(got[1]) {
		t.Fatalf("NaN current should give NaN, got %v", got[1])
	}
}

func TestPercentRank(t *testing.T) {
	assertSeries(t, "rising", run(NewPercentRank(3), 1, 2, 3, 4), []float64{nan, nan, nan, 100})
	assertSeries(t, "falling", run(NewPercentRank(3), 4, 3, 2, 1), []float64{nan, nan, nan, 0})
	got := run(NewPercentRank(3), 1, 3, 2, 2)
	assertClose(t, "mixed", got[3], 200.0/3, 1e-9)
}

func TestChange(t *testing.T) {
	assertSeries(t, "change2", run(NewChange(2), 1, 2, 4, 7), []float64{nan, nan, 3, 5})
}

func TestConstructors_PanicOnBadLength(t *testing.T) {
	ctors := map[string]func(){
		"sum":         func() { NewSum(0) },
		"sma":         func() { NewSMA(0) },
		"ema":         func() { NewEMA(-1) },
		"rma":         func() { NewRMA(0) },
		"wma":         func() { NewWMA(0) },
		"hma":         func() { NewHMA(0) },
		"stdev":       func() { NewWindowStdev(0, true) },
		"highest":     func() { NewHighest(0) },
		"lowest":      func() { NewLowest(0) },
		"percentrank": func() { NewPercentRank(0) },
		"change":      func() { NewChange(0) },
	}
	for name, fn := range ctors {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", name)
				}
			}()
			fn()
		}()
	}
}
