package cross

import (
	"math"
	"testing"
)

func TestDetector_FirstEvaluationIsNone(t *testing.T) {
	d := New()
	if m := d.Step(Pair{2, 1}); m != None {
		t.Fatalf("first step = %v, want none", m)
	}
}

func TestDetector_OverUnder(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want []Mode
	}{
		{"over", []float64{1, 3}, []float64{2, 2}, []Mode{None, Over}},
		{"under", []float64{3, 1}, []float64{2, 2}, []Mode{None, Under}},
		{"touch then over", []float64{1, 2, 3}, []float64{2, 2, 2}, []Mode{None, None, Over}},
		{"touch then under", []float64{3, 2, 1}, []float64{2, 2, 2}, []Mode{None, None, Under}},
		{"stay above", []float64{3, 4, 5}, []float64{2, 2, 2}, []Mode{None, None, None}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			for i := range tt.a {
				if got := d.Step(Pair{tt.a[i], tt.b[i]}); got != tt.want[i] {
					t.Fatalf("step %d: got %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestDetector_NaNSuppresses(t *testing.T) {
	nan := math.NaN()
	d := New()
	d.Step(Pair{1, 2})
	if d.Over(nan, 2) {
		t.Fatal("NaN current reported a cross")
	}
	// previous pair holds the NaN
	if d.Over(3, 2) {
		t.Fatal("NaN previous reported a cross")
	}
	if !d.Under(1, 2) {
		t.Fatal("expected under once both pairs are defined")
	}
}

func TestThreshold(t *testing.T) {
	th := NewThreshold(70)
	series := []float64{65, 69, 71, 75, 68}
	want := []Mode{None, None, Over, None, Under}
	for i, v := range series {
		if got := th.Step(v); got != want[i] {
			t.Errorf("bar %d: got %v, want %v", i, got, want[i])
		}
	}
	if th.Level() != 70 {
		t.Fatalf("level=%v", th.Level())
	}
}

func TestThreshold_Ordinal(t *testing.T) {
	f := NewThreshold(0).Ordinal()
	f.Step(-1)
	if got := f.Step(1); got != float64(Over) {
		t.Fatalf("ordinal=%v", got)
	}
	if Over.String() != "over" || None.String() != "none" {
		t.Fatal("mode strings")
	}
}
