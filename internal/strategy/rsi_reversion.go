package strategy

import (
	"fmt"

	"tradesim/internal/barctx"
	"tradesim/internal/cross"
	"tradesim/internal/indicator"
	"tradesim/internal/model"
	"tradesim/internal/signal"
)

const RSIReversionName = "rsi_reversion"

// RSIReversion fades RSI extremes with an equity-sized position.
//
// When RSI climbs back above Oversold the target exposure becomes EquityPct
// of equity long; when it falls back below Overbought it becomes EquityPct
// short. The position is held between signals.
type RSIReversion struct {
	p          Params
	rsiName    string
	oversold   *cross.Threshold
	overbought *cross.Threshold
	sizer      *signal.EquityPercent
	pct        float64
}

// NewRSIReversion validates p and creates the strategy. Only the RSI period,
// thresholds and EquityPct are used.
func NewRSIReversion(p Params) (*RSIReversion, error) {
	if p.RSIPeriod < 1 {
		return nil, fmt.Errorf("strategy: %s needs rsi_period >= 1, got %d", RSIReversionName, p.RSIPeriod)
	}
	if p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("strategy: oversold %v must be < overbought %v", p.Oversold, p.Overbought)
	}
	if p.EquityPct <= 0 {
		return nil, fmt.Errorf("strategy: %s needs equity_pct > 0, got %v", RSIReversionName, p.EquityPct)
	}
	return &RSIReversion{
		p:          p,
		rsiName:    model.FeatureName("RSI", p.RSIPeriod),
		oversold:   cross.NewThreshold(p.Oversold),
		overbought: cross.NewThreshold(p.Overbought),
	}, nil
}

func (s *RSIReversion) Name() string { return RSIReversionName }

func (s *RSIReversion) Features() []indicator.Config {
	return []indicator.Config{{Type: "RSI", Period: s.p.RSIPeriod}}
}

func (s *RSIReversion) OnBar(ctx *barctx.Context, f model.Features, acct Account) signal.Signal {
	if s.sizer == nil {
		s.sizer = signal.NewEquityPercent(ctx.Instrument())
		if acct.ExchangeRate > 0 {
			s.sizer.WithExchangeRate(acct.ExchangeRate)
		}
	}
	rsi := feature(f, s.rsiName)
	// both thresholds step every bar so their previous values stay aligned
	up := s.oversold.Step(rsi) == cross.Over
	down := s.overbought.Step(rsi) == cross.Under
	switch {
	case up:
		s.pct = s.p.EquityPct
	case down:
		s.pct = -s.p.EquityPct
	}
	sig := s.sizer.Step(signal.Target{
		Pct:      s.pct,
		Equity:   acct.Equity,
		Price:    ctx.Close(0),
		Position: acct.Position,
	})
	if sig.IsHold() {
		return sig
	}
	return sig.WithID("", fmt.Sprintf("rsi %.1f", rsi))
}
