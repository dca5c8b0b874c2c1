package trade

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/internal/na"
)

// OrderSize converts a fraction of equity into contracts:
// equityPct * equity * exchangeRate / (price * pointValue).
// equityPct is a fraction (1.0 = all equity); the direction sign is applied by
// the caller. Panics when equity or equityPct is negative. A zero price yields
// NaN.
func OrderSize(equityPct, equity, exchangeRate, price, pointValue float64) float64 {
	if equity < 0 {
		panic(fmt.Sprintf("trade: order size with negative equity %v", equity))
	}
	if equityPct < 0 {
		panic(fmt.Sprintf("trade: order size with negative equity pct %v", equityPct))
	}
	return na.Div(equityPct*equity*exchangeRate, price*pointValue)
}

// RoundToMinTick rounds v to the nearest multiple of tick, halves away from
// zero. A NaN (or non-positive) tick leaves v untouched; a NaN v becomes 0.
func RoundToMinTick(v, tick float64) float64 {
	if na.Is(tick) || tick <= 0 {
		return v
	}
	if na.Is(v) {
		return 0
	}
	t := decimal.NewFromFloat(tick)
	out, _ := decimal.NewFromFloat(v).Div(t).Round(0).Mul(t).Float64()
	return out
}

// RoundContracts rounds a quantity to the nearest multiple of lot, with the
// same rules as RoundToMinTick.
func RoundContracts(v, lot float64) float64 {
	return RoundToMinTick(v, lot)
}

// ValidateContracts reports whether v is a positive, whole multiple of lot
// (any positive v when lot is NaN).
func ValidateContracts(v, lot float64) bool {
	if na.Is(v) || v <= 0 {
		return false
	}
	if na.Is(lot) || lot <= 0 {
		return true
	}
	return decimal.NewFromFloat(v).Mod(decimal.NewFromFloat(lot)).IsZero()
}
