// Package incr is the unit of per-bar stateful computation.
//
// Every Step instance keeps private state and must be called exactly once per
// bar, in strictly increasing bar order, even when there is nothing to feed it
// (pass Empty{} or a NaN). Skipping or repeating a bar is a precondition
// violation with undefined results, not a recoverable error.
package incr

import (
	"tradesim/internal/barctx"
	"tradesim/internal/model"
)

// Step computes one output per bar from one input.
type Step[In, Out any] interface {
	Step(in In) Out
}

// Empty is the unit input for steps that read state or context instead.
type Empty struct{}

// Func adapts a closure to Step.
type Func[In, Out any] func(In) Out

func (f Func[In, Out]) Step(in In) Out { return f(in) }

// Chained pipes the output of First into Second.
type Chained[A, B, C any] struct {
	First  Step[A, B]
	Second Step[B, C]
}

// Chain composes a and b into a new step of type A -> C.
func Chain[A, B, C any](a Step[A, B], b Step[B, C]) *Chained[A, B, C] {
	return &Chained[A, B, C]{First: a, Second: b}
}

func (c *Chained[A, B, C]) Step(in A) C {
	return c.Second.Step(c.First.Step(in))
}

// Forced ignores its declared input and draws from a zero-input producer.
type Forced[In, Out any] struct {
	Source Step[Empty, Out]
}

// Force wraps src so it can sit where a Step[In, Out] is expected.
func Force[In, Out any](src Step[Empty, Out]) *Forced[In, Out] {
	return &Forced[In, Out]{Source: src}
}

func (f *Forced[In, Out]) Step(In) Out { return f.Source.Step(Empty{}) }

// Map lifts a pure function into a stateless step.
func Map[In, Out any](fn func(In) Out) Func[In, Out] { return Func[In, Out](fn) }

// BarSource is a producer that reads one field of the current bar.
type BarSource struct {
	ctx   *barctx.Context
	field model.Field
}

// Source returns a producer for field f of ctx's current bar.
func Source(ctx *barctx.Context, f model.Field) *BarSource {
	return &BarSource{ctx: ctx, field: f}
}

func (s *BarSource) Step(Empty) float64 { return s.ctx.Value(s.field, 0) }

// Collect feeds every input through s in order and returns the outputs.
func Collect[In, Out any](s Step[In, Out], inputs []In) []Out {
	out := make([]Out, len(inputs))
	for i, in := range inputs {
		out[i] = s.Step(in)
	}
	return out
}
