// Package na defines the "not yet computable" sentinel shared by every
// streaming primitive.
//
// The sentinel is NaN. Arithmetic with NaN yields NaN and every ordered
// comparison involving NaN is false, which is exactly the propagation the
// primitives depend on. Infinities that appear mid-computation (a zero-width
// range used as a divisor, for example) are folded back into NaN with
// Normalize at the point where they are produced.
package na

import "math"

// Value returns the sentinel.
func Value() float64 { return math.NaN() }

// Is reports whether v is the sentinel.
func Is(v float64) bool { return math.IsNaN(v) }

// Any reports whether any of vs is the sentinel.
func Any(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Normalize maps ±Inf to the sentinel and leaves every other value alone.
func Normalize(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Div divides a by b, returning the sentinel instead of an infinity.
func Div(a, b float64) float64 {
	return Normalize(a / b)
}

// Or returns v, or repl when v is the sentinel.
func Or(v, repl float64) float64 {
	if math.IsNaN(v) {
		return repl
	}
	return v
}

// Nz is Or with a zero replacement.
func Nz(v float64) float64 { return Or(v, 0) }
