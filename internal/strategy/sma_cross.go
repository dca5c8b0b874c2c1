package strategy

import (
	"log/slog"
	"math"

	"tradesim/internal/barctx"
	"tradesim/internal/cross"
	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/signal"
	"tradesim/internal/trade"
)

const SMACrossName = "sma_cross"

var nan = math.NaN()

// SMACross implements a simple SMA crossover strategy.
//
// Long: fast SMA crosses above slow SMA (golden cross).
// Short: fast SMA crosses below slow SMA (death cross).
//
// Each cross targets a position of ±Size, reversing whatever is open. With an
// RSI period set, a golden cross is skipped while RSI is above Overbought and
// a death cross while RSI is below Oversold.
type SMACross struct {
	p        Params
	fastName string
	slowName string
	rsiName  string
	cross    *cross.Detector
}

// NewSMACross validates p and creates the strategy.
func NewSMACross(p Params) (*SMACross, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &SMACross{
		p:        p,
		fastName: model.FeatureName("SMA", p.Fast),
		slowName: model.FeatureName("SMA", p.Slow),
		cross:    cross.New(),
	}
	if p.RSIPeriod > 0 {
		s.rsiName = model.FeatureName("RSI", p.RSIPeriod)
	}
	return s, nil
}

func (s *SMACross) Name() string { return SMACrossName }

func (s *SMACross) Features() []indicator.Config {
	cfgs := []indicator.Config{
		{Type: "SMA", Period: s.p.Fast},
		{Type: "SMA", Period: s.p.Slow},
	}
	if s.rsiName != "" {
		cfgs = append(cfgs, indicator.Config{Type: "RSI", Period: s.p.RSIPeriod})
	}
	return cfgs
}

func (s *SMACross) OnBar(ctx *barctx.Context, f model.Features, acct Account) signal.Signal {
	fast, slow := feature(f, s.fastName), feature(f, s.slowName)
	rsi := nan
	if s.rsiName != "" {
		rsi = feature(f, s.rsiName)
	}

	switch s.cross.Step(cross.Pair{A: fast, B: slow}) {
	case cross.Over:
		if rsi > s.p.Overbought {
			slog.Debug("golden cross filtered", "strategy", s.Name(), "bar", ctx.Index(), "rsi", rsi)
			return signal.Hold()
		}
		return s.target(trade.Long, acct.Position).WithID("", "golden cross")
	case cross.Under:
		if rsi < s.p.Oversold {
			slog.Debug("death cross filtered", "strategy", s.Name(), "bar", ctx.Index(), "rsi", rsi)
			return signal.Hold()
		}
		return s.target(trade.Short, acct.Position).WithID("", "death cross")
	}
	return signal.Hold()
}

// target returns the order moving position to dir × Size.
func (s *SMACross) target(dir trade.Direction, position float64) signal.Signal {
	delta := dir.Sign()*s.p.Size - position
	switch {
	case delta > 0:
		return signal.Order(trade.Long, delta)
	case delta < 0:
		return signal.Order(trade.Short, -delta)
	}
	return signal.Hold()
}
