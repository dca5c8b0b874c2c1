package portfolio

import (
	"tradesim/internal/model"
	"tradesim/internal/na"
	"tradesim/internal/trade"
)

// EquityMetrics is the per-bar equity snapshot.
//
// Equity (capital + realized + open profit) and its running extremes move
// every bar. NetEquity (capital + realized) and its extremes move only on a
// bar where a trade exited. The open-profit range is the sum of every open
// trade evaluated at the bar's low and high, swapped for shorts, and the
// bar-equity range is NetEquity plus that range.
type EquityMetrics struct {
	InitialCapital float64 `json:"initial_capital"`

	Equity    float64 `json:"equity"`
	EquityMin float64 `json:"equity_min"`
	EquityMax float64 `json:"equity_max"`

	NetEquity    float64 `json:"net_equity"`
	NetEquityMin float64 `json:"net_equity_min"`
	NetEquityMax float64 `json:"net_equity_max"`

	OpenProfit    float64 `json:"open_profit"`
	OpenProfitMin float64 `json:"open_profit_min"`
	OpenProfitMax float64 `json:"open_profit_max"`

	BarEquityMin float64 `json:"bar_equity_min"`
	BarEquityMax float64 `json:"bar_equity_max"`

	// peak-to-trough of Equity
	MaxDrawdown    float64 `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// NewEquityMetrics starts every equity field at capital.
func NewEquityMetrics(capital float64) EquityMetrics {
	return EquityMetrics{
		InitialCapital: capital,
		Equity:         capital,
		EquityMin:      capital,
		EquityMax:      capital,
		NetEquity:      capital,
		NetEquityMin:   capital,
		NetEquityMax:   capital,
		BarEquityMin:   capital,
		BarEquityMax:   capital,
	}
}

// Update recomputes the snapshot for bar. realized is the cumulative realized
// profit, open the trades still open after the bar's fills, and exited
// whether any trade closed on this bar. A bar whose close is NaN leaves the
// snapshot untouched; a missing low or high falls back to the close.
func (m *EquityMetrics) Update(bar model.Bar, realized float64, open []*trade.Trade, exited bool) {
	if na.Is(bar.Close) {
		return
	}
	low, high := na.Or(bar.Low, bar.Close), na.Or(bar.High, bar.Close)

	var openProfit, lo, hi float64
	for _, t := range open {
		openProfit += t.ProfitAt(bar.Close)
		l, h := t.ProfitRange(low, high)
		lo += l
		hi += h
	}

	m.OpenProfit = openProfit
	m.Equity = m.InitialCapital + realized + openProfit
	m.EquityMin = min(m.EquityMin, m.Equity)
	m.EquityMax = max(m.EquityMax, m.Equity)

	if dd := m.EquityMax - m.Equity; dd > m.MaxDrawdown {
		m.MaxDrawdown = dd
		if m.EquityMax > 0 {
			m.MaxDrawdownPct = dd / m.EquityMax * 100
		}
	}

	if exited {
		m.NetEquity = m.InitialCapital + realized
		m.NetEquityMin = min(m.NetEquityMin, m.NetEquity)
		m.NetEquityMax = max(m.NetEquityMax, m.NetEquity)
	}

	if len(open) > 0 {
		m.OpenProfitMin, m.OpenProfitMax = lo, hi
	} else {
		m.OpenProfitMin, m.OpenProfitMax = 0, 0
	}
	m.BarEquityMin = m.NetEquity + m.OpenProfitMin
	m.BarEquityMax = m.NetEquity + m.OpenProfitMax
}

// DrawdownPct is the current distance of Equity below its peak, in percent.
func (m *EquityMetrics) DrawdownPct() float64 {
	if m.EquityMax <= 0 {
		return 0
	}
	return (m.EquityMax - m.Equity) / m.EquityMax * 100
}
