package data

import (
	"fmt"
	"time"

	"tradesim/internal/model"
	"tradesim/internal/na"
)

// Resample aggregates p into a coarser timeframe tf, aligning buckets to
// multiples of tf since the Unix epoch. Each output bar merges every source
// bar whose open time falls in its bucket: open of the first, close of the
// last, max high, min low, summed volume. NaN fields are skipped.
//
// The trailing bucket is kept only when it is complete, that is when its last
// source bar closes at or after the bucket end; a source without a timeframe
// can't prove that and always loses its last bucket. Every earlier bucket is
// complete by construction.
//
// This is a data-level transform producing a new Provider; it does not try to
// recompute a higher-timeframe value on every base bar.
func Resample(p Provider, tf time.Duration) (*Memory, error) {
	if tf <= 0 || tf%time.Second != 0 {
		return nil, fmt.Errorf("data: resample: timeframe %s must be a positive whole number of seconds", tf)
	}
	if p.Timeframe() > 0 && tf < p.Timeframe() {
		return nil, fmt.Errorf("data: resample: target %s finer than source %s", tf, p.Timeframe())
	}
	tfSec := int64(tf / time.Second)

	var (
		out     []model.Bar
		cur     model.Bar
		bucket  int64
		lastTS  time.Time
		started bool
	)
	for i := p.FirstTick(); i <= p.LastTick(); i++ {
		t, ok := p.Time(i)
		if !ok {
			return nil, fmt.Errorf("data: resample: tick %d has no timestamp", i)
		}
		ts := t.Unix()
		b := ts - (ts % tfSec)
		lastTS = t
		if !started || b != bucket {
			if started {
				out = append(out, cur)
			}
			bucket, started = b, true
			cur = model.Bar{
				Index:   len(out),
				Time:    time.Unix(b, 0).UTC(),
				HasTime: true,
				Open:    p.Open(i),
				High:    p.High(i),
				Low:     p.Low(i),
				Close:   p.Close(i),
				Volume:  p.Volume(i),
			}
			continue
		}
		if na.Is(cur.Open) {
			cur.Open = p.Open(i)
		}
		cur.High = extreme(cur.High, p.High(i), true)
		cur.Low = extreme(cur.Low, p.Low(i), false)
		cur.Close = na.Or(p.Close(i), cur.Close)
		cur.Volume = na.Or(cur.Volume, 0) + na.Nz(p.Volume(i))
	}
	if started && p.Timeframe() > 0 && !lastTS.Add(p.Timeframe()).Before(time.Unix(bucket+tfSec, 0)) {
		out = append(out, cur)
	}
	return NewMemory(p.Instrument(), tf, out)
}

// extreme keeps the larger (or smaller) of two values, ignoring NaN.
func extreme(a, b float64, higher bool) float64 {
	switch {
	case na.Is(a):
		return b
	case na.Is(b):
		return a
	case higher == (b > a):
		return b
	}
	return a
}
