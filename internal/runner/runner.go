// Package runner replays strategy targets over (asset × period) units.
//
// Each unit gets its own Target from the Factory and is stepped once per tick
// of its period on a single goroutine. Units run on a bounded worker pool;
// results come back in the order the work was listed regardless of which
// worker finished first. A failing unit (unknown asset, bad period, a panic
// inside the target) yields an error for that unit only.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesim/internal/data"
	"tradesim/internal/logger"
	"tradesim/internal/progress"
)

var (
	ErrUnknownAsset  = errors.New("runner: unknown asset")
	ErrInvalidPeriod = errors.New("runner: invalid period")
)

// cancellation is checked every this many ticks inside a unit
const cancelCheckEvery = 1024

// Target is one strategy instance driven over one period.
type Target[R any] interface {
	OnStart()
	Next(tick int)
	OnFinish() R
}

// Job describes the unit a Target is created for.
type Job struct {
	RunID    string
	Asset    string
	Period   Period
	Provider data.Provider
	Unit     int
}

// Factory creates a fresh Target per unit.
type Factory[R any] func(Job) Target[R]

// Work asks for asset to be run over Periods and TimePeriods. When both are
// empty the provider's full range is used.
type Work struct {
	Asset       string
	Periods     []Period
	TimePeriods []TimePeriod
}

// Result is the outcome of one unit.
type Result[R any] struct {
	Asset   string
	Period  Period
	Value   R
	Err     error
	Bars    int
	Elapsed time.Duration
}

// Options configures a Runner.
type Options struct {
	Workers  int               // default 1
	Reporter progress.Reporter // default progress.Discard
	Logger   *slog.Logger      // default slog.Default()
}

// Runner runs a Factory over work items.
type Runner[R any] struct {
	registry *Registry
	factory  Factory[R]
	opts     Options
}

func New[R any](reg *Registry, factory Factory[R], opts Options) *Runner[R] {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner[R]{registry: reg, factory: factory, opts: opts}
}

type unit struct {
	job Job
	err error // set when the unit cannot run at all
}

// plan expands work into units, resolving providers and periods.
func (r *Runner[R]) plan(runID string, work []Work) []unit {
	var units []unit
	add := func(u unit) {
		u.job.RunID = runID
		u.job.Unit = len(units)
		units = append(units, u)
	}
	for _, w := range work {
		prov, ok := r.registry.Lookup(w.Asset)
		if !ok {
			add(unit{job: Job{Asset: w.Asset}, err: fmt.Errorf("%w: %q", ErrUnknownAsset, w.Asset)})
			continue
		}
		if len(w.Periods) == 0 && len(w.TimePeriods) == 0 {
			p := Full(prov)
			add(unit{job: Job{Asset: w.Asset, Period: p, Provider: prov}, err: p.Validate(prov)})
			continue
		}
		for _, p := range w.Periods {
			add(unit{job: Job{Asset: w.Asset, Period: p, Provider: prov}, err: p.Validate(prov)})
		}
		for _, tp := range w.TimePeriods {
			p, err := tp.Resolve(prov)
			add(unit{job: Job{Asset: w.Asset, Period: p, Provider: prov}, err: err})
		}
	}
	return units
}

// Run executes every unit and returns one Result per unit in work order.
// The run id is taken from ctx (logger.WithRunID) or generated. Cancelling
// ctx stops scheduling; units that never started carry ctx's error and
// running units stop at the next check.
func (r *Runner[R]) Run(ctx context.Context, work []Work) []Result[R] {
	ctx, runID := logger.EnsureRunID(ctx)
	units := r.plan(runID, work)
	results := make([]Result[R], len(units))
	log := r.opts.Logger.With(logger.Attrs(ctx)...)
	log.Info("batch started", "units", len(units), "workers", r.opts.Workers)
	start := time.Now()

	events := make(chan progress.Event, r.opts.Workers*2)
	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = r.runUnit(ctx, units[i], len(units), events)
			}
		}()
	}

	go func() {
		defer func() {
			wg.Wait()
			close(events)
		}()
		defer close(idx)
		for i := range units {
			select {
			case idx <- i:
			case <-ctx.Done():
				for j := i; j < len(units); j++ {
					job := units[j].job
					results[j] = Result[R]{Asset: job.Asset, Period: job.Period, Err: ctx.Err()}
					events <- progress.Event{
						RunID: job.RunID, Asset: job.Asset,
						From: job.Period.From, To: job.Period.To,
						Unit: job.Unit, Units: len(units),
						Status: progress.StatusCanceled, Time: time.Now(),
						Err: ctx.Err().Error(),
					}
				}
				return
			}
		}
	}()

	// single collector: reporters never see concurrent calls
	for e := range events {
		r.opts.Reporter.Report(e)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	log.Info("batch finished", "units", len(units), "failed", failed, "elapsed", time.Since(start))
	return results
}

func (r *Runner[R]) runUnit(ctx context.Context, u unit, total int, events chan<- progress.Event) (res Result[R]) {
	job := u.job
	res = Result[R]{Asset: job.Asset, Period: job.Period}
	ev := progress.Event{
		RunID: job.RunID, Asset: job.Asset,
		From: job.Period.From, To: job.Period.To,
		Unit: job.Unit, Units: total,
	}
	emit := func(s progress.Status) {
		e := ev
		e.Status, e.Time = s, time.Now()
		e.Bars, e.Elapsed = res.Bars, res.Elapsed
		if res.Err != nil {
			e.Err = res.Err.Error()
		}
		if tc, ok := any(res.Value).(progress.TradeCounter); ok && s == progress.StatusFinished {
			e.Trades = tc.TradeCount()
		}
		events <- e
	}

	emit(progress.StatusStarted)
	if u.err != nil {
		res.Err = u.err
		emit(progress.StatusFailed)
		return res
	}

	start := time.Now()
	func() {
		defer func() {
			if p := recover(); p != nil {
				res.Err = fmt.Errorf("runner: %s %s: panic: %v", job.Asset, job.Period, p)
			}
		}()
		target := r.factory(job)
		target.OnStart()
		for tick := job.Period.From; tick <= job.Period.To; tick++ {
			if res.Bars%cancelCheckEvery == 0 && ctx.Err() != nil {
				res.Err = ctx.Err()
				return
			}
			target.Next(tick)
			res.Bars++
		}
		res.Value = target.OnFinish()
	}()
	res.Elapsed = time.Since(start)

	switch {
	case res.Err == nil:
		emit(progress.StatusFinished)
	case errors.Is(res.Err, context.Canceled), errors.Is(res.Err, context.DeadlineExceeded):
		emit(progress.StatusCanceled)
	default:
		emit(progress.StatusFailed)
	}
	return res
}

// Values returns the values of successful results, in order.
func Values[R any](results []Result[R]) []R {
	out := make([]R, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors joins the errors of failed results, or returns nil.
func Errors[R any](results []Result[R]) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Asset, r.Period, r.Err))
		}
	}
	return errors.Join(errs...)
}
