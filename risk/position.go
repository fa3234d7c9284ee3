package risk

import "github.com/shopspring/decimal"

// SizeInputs describes an allocation-based order size.
type SizeInputs struct {
	Equity        float64
	AllocationPct float64 // 0.05
	Price         float64
}

// Size returns the whole number of units that spends AllocationPct of Equity
// at Price. Anything that cannot buy a single unit sizes to zero.
func Size(in SizeInputs) decimal.Decimal {
	if in.Equity <= 0 || in.AllocationPct <= 0 || in.Price <= 0 {
		return decimal.Zero
	}
	budget := decimal.NewFromFloat(in.Equity).Mul(decimal.NewFromFloat(in.AllocationPct))
	return budget.Div(decimal.NewFromFloat(in.Price)).Floor()
}

// Notional is units * price.
func Notional(units decimal.Decimal, price float64) decimal.Decimal {
	return units.Mul(decimal.NewFromFloat(price))
}
