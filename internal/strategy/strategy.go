// Package strategy holds trading logic and the backtest target that runs it.
//
// A Logic receives one bar at a time together with the feature values it
// asked for and returns a Signal. It never sees the book directly; the
// Backtest target owns the bar context, feature set and book of a run and
// drives the Logic once per tick.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"tradesim/internal/barctx"
	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/signal"
)

// ErrUnknownStrategy is returned by Lookup and NewBacktest.
var ErrUnknownStrategy = errors.New("strategy: unknown strategy")

// Account is the book state a Logic may size against.
type Account struct {
	Position     float64 // signed contracts
	Equity       float64 // at the current close
	ExchangeRate float64 // account currency to instrument currency
}

// Logic is the interface all strategies implement.
type Logic interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Features lists the indicators the strategy reads on every bar.
	Features() []indicator.Config

	// OnBar is called once per bar after the features are updated.
	OnBar(ctx *barctx.Context, f model.Features, acct Account) signal.Signal
}

// Params configures the builtin strategies. Fields a strategy does not use
// are ignored.
type Params struct {
	Fast       int     `yaml:"fast" json:"fast"`
	Slow       int     `yaml:"slow" json:"slow"`
	RSIPeriod  int     `yaml:"rsi_period" json:"rsi_period"` // 0 disables the RSI filter of sma_cross
	Overbought float64 `yaml:"overbought" json:"overbought"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`
	Size       float64 `yaml:"size" json:"size"`             // fixed contracts per entry
	EquityPct  float64 `yaml:"equity_pct" json:"equity_pct"` // fraction of equity for equity-sized strategies, 1 = 100%
}

// DefaultParams returns the parameters used when a config leaves them unset.
func DefaultParams() Params {
	return Params{
		Fast:       9,
		Slow:       21,
		RSIPeriod:  14,
		Overbought: 70,
		Oversold:   30,
		Size:       1,
		EquityPct:  1,
	}
}

// Validate checks the parameters shared by the builtins.
func (p Params) Validate() error {
	if p.Fast < 1 || p.Slow < 1 {
		return fmt.Errorf("strategy: periods must be >= 1, got fast=%d slow=%d", p.Fast, p.Slow)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("strategy: fast period %d must be < slow period %d", p.Fast, p.Slow)
	}
	if p.RSIPeriod < 0 {
		return fmt.Errorf("strategy: rsi period %d < 0", p.RSIPeriod)
	}
	if p.Oversold >= p.Overbought {
		return fmt.Errorf("strategy: oversold %v must be < overbought %v", p.Oversold, p.Overbought)
	}
	if p.Size <= 0 {
		return fmt.Errorf("strategy: size must be > 0, got %v", p.Size)
	}
	if p.EquityPct < 0 {
		return fmt.Errorf("strategy: equity pct must be >= 0, got %v", p.EquityPct)
	}
	return nil
}

// Constructor builds a fresh Logic. Each run gets its own instance.
type Constructor func(Params) (Logic, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Constructor{
		SMACrossName:     func(p Params) (Logic, error) { return NewSMACross(p) },
		RSIReversionName: func(p Params) (Logic, error) { return NewRSIReversion(p) },
	}
)

// Register adds a named strategy, replacing any previous one.
func Register(name string, c Constructor) {
	regMu.Lock()
	registry[name] = c
	regMu.Unlock()
}

// Lookup returns the constructor registered under name.
func Lookup(name string) (Constructor, error) {
	regMu.RLock()
	c, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return c, nil
}

// Names lists the registered strategies, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// feature returns f[name], NaN when missing.
func feature(f model.Features, name string) float64 {
	if v, ok := f[name]; ok {
		return v
	}
	return nan
}
