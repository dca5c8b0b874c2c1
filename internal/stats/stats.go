// Package stats provides the streaming statistics every indicator is built
// from: windowed sums, online variance, the moving-average family and the
// window extremes.
//
// Each type is an incr.Step[float64, float64]: call Step once per bar with the
// bar's input (NaN when there is none). Outputs are NaN ("not yet computable")
// until enough history exists; the warm-up rule of each type is documented on
// it. Constructors panic on a window length below 1.
package stats

import (
	"fmt"

	"tradesim/internal/incr"
)

// Series is the shape shared by every primitive in this package.
type Series = incr.Step[float64, float64]

func mustLength(kind string, length int) {
	if length < 1 {
		panic(fmt.Sprintf("stats: %s length must be >= 1, got %d", kind, length))
	}
}
