package portfolio

import "math"

// RiskLimits gates orders that add exposure. Zero disables a limit. Orders
// that only reduce the position are always allowed.
type RiskLimits struct {
	MaxPosition    float64 `json:"max_position" yaml:"max_position"`         // max absolute contracts
	MaxOpenTrades  int     `json:"max_open_trades" yaml:"max_open_trades"`   // max concurrent open trades
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"` // stop opening below this drawdown (0-100)
}

// DefaultRiskLimits imposes no limits.
func DefaultRiskLimits() RiskLimits { return RiskLimits{} }

// CanTrade checks whether moving the position from current to next is
// allowed. It returns false with a reason when a limit is hit.
func (l RiskLimits) CanTrade(current, next float64, openTrades int, drawdownPct float64) (bool, string) {
	if math.Abs(next) <= math.Abs(current) && (next == 0 || math.Signbit(next) == math.Signbit(current)) {
		return true, ""
	}
	if l.MaxPosition > 0 && math.Abs(next) > l.MaxPosition {
		return false, "position size exceeds limit"
	}
	if l.MaxOpenTrades > 0 && openTrades >= l.MaxOpenTrades {
		return false, "max open trades reached"
	}
	if l.MaxDrawdownPct > 0 && drawdownPct > l.MaxDrawdownPct {
		return false, "max drawdown exceeded"
	}
	return true, ""
}
