package na

import (
	"math"
	"testing"
)

func TestSentinelPropagation(t *testing.T) {
	v := Value()
	if !Is(v) || !Is(v+1) || !Is(v*0) {
		t.Fatal("arithmetic with the sentinel must stay the sentinel")
	}
	if v > 0 || v < 0 || v == v {
		t.Fatal("comparisons with the sentinel must be false")
	}
}

func TestNormalize(t *testing.T) {
	if !Is(Normalize(math.Inf(1))) || !Is(Normalize(math.Inf(-1))) {
		t.Fatal("infinities must normalize to the sentinel")
	}
	if Normalize(2.5) != 2.5 {
		t.Fatal("finite values must pass through")
	}
	if !Is(Div(1, 0)) {
		t.Fatal("division by zero must give the sentinel")
	}
	if Div(6, 3) != 2 {
		t.Fatal("plain division broken")
	}
}

func TestOrNzAny(t *testing.T) {
	if Or(Value(), 7) != 7 || Or(3, 7) != 3 {
		t.Fatal("Or broken")
	}
	if Nz(Value()) != 0 {
		t.Fatal("Nz broken")
	}
	if !Any(1, Value()) || Any(1, 2) {
		t.Fatal("Any broken")
	}
}
