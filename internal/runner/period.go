package runner

import (
	"fmt"
	"time"

	"tradesim/internal/data"
)

// Period is an inclusive tick range [From, To].
type Period struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Full is the whole tick range of p.
func Full(p data.Provider) Period {
	return Period{From: p.FirstTick(), To: p.LastTick()}
}

// Len is the number of ticks in the period.
func (p Period) Len() int { return p.To - p.From + 1 }

func (p Period) String() string { return fmt.Sprintf("[%d,%d]", p.From, p.To) }

// Validate checks that the period is non-empty and inside p's range.
func (p Period) Validate(prov data.Provider) error {
	if p.From > p.To {
		return fmt.Errorf("%w: %s is empty", ErrInvalidPeriod, p)
	}
	if p.From < prov.FirstTick() || p.To > prov.LastTick() {
		return fmt.Errorf("%w: %s outside [%d,%d]", ErrInvalidPeriod, p, prov.FirstTick(), prov.LastTick())
	}
	return nil
}

// TimePeriod is a period expressed in wall-clock time, resolved to ticks
// with the provider's FindTick.
type TimePeriod struct {
	From time.Time `json:"from" yaml:"from"`
	To   time.Time `json:"to" yaml:"to"`
}

// Resolve maps the time range onto ticks. Either end falling outside the
// data is an ErrInvalidPeriod.
func (tp TimePeriod) Resolve(prov data.Provider) (Period, error) {
	from, ok := prov.FindTick(tp.From.Unix())
	if !ok {
		return Period{}, fmt.Errorf("%w: no tick at %s", ErrInvalidPeriod, tp.From.Format(time.RFC3339))
	}
	to, ok := prov.FindTick(tp.To.Unix())
	if !ok {
		return Period{}, fmt.Errorf("%w: no tick at %s", ErrInvalidPeriod, tp.To.Format(time.RFC3339))
	}
	p := Period{From: from, To: to}
	return p, p.Validate(prov)
}
