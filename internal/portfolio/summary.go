package portfolio

import "tradesim/internal/stats"

// Summary is the headline statistics of a finished run.
type Summary struct {
	InitialCapital float64 `json:"initial_capital"`
	NetProfit      float64 `json:"net_profit"`
	TotalReturn    float64 `json:"total_return_pct"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate_pct"`
	ProfitFactor   float64 `json:"profit_factor"` // 0 when there are no losing trades
	Sharpe         float64 `json:"sharpe"`        // per bar, not annualized
	GrossProfit    float64 `json:"gross_profit"`
	GrossLoss      float64 `json:"gross_loss"`
	OpenTrades     int     `json:"open_trades"`
	OpenProfit     float64 `json:"open_profit"`
}

// Summary computes statistics over the closed trades.
func (b *Book) Summary() Summary {
	s := Summary{
		InitialCapital: b.opts.Capital,
		NetProfit:      b.realized,
		MaxDrawdown:    b.metrics.MaxDrawdown,
		MaxDrawdownPct: b.metrics.MaxDrawdownPct,
		TotalTrades:    len(b.closed),
		OpenTrades:     len(b.open),
		OpenProfit:     b.metrics.OpenProfit,
	}
	for _, t := range b.closed {
		switch p := t.Profit(); {
		case p > 0:
			s.Wins++
			s.GrossProfit += p
		case p < 0:
			s.Losses++
			s.GrossLoss -= p
		}
	}
	s.TotalReturn = s.NetProfit / s.InitialCapital * 100
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	s.Sharpe = sharpe(b.curve)
	return s
}

// sharpe is mean over stdev of the bar-to-bar equity returns, with a zero
// risk-free rate. It is 0 with fewer than two returns or a flat curve.
func sharpe(curve []EquityPoint) float64 {
	w := stats.NewWelford()
	for i := 1; i < len(curve); i++ {
		if prev := curve[i-1].Equity; prev > 0 {
			w.Push(curve[i].Equity/prev - 1)
		}
	}
	sd := w.Stdev()
	if w.Count() < 2 || sd == 0 {
		return 0
	}
	return w.Mean() / sd
}
