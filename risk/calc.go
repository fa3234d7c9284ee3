package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// TradingDays annualizes daily volatility.
const TradingDays = 252

var ErrInsufficientReturns = errors.New("insufficient return history")

// Quantile returns the q-quantile of sorted values using linear
// interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// HistoricalVaR simulates P&L by applying each historical return to value and
// reports the loss at the given confidence as a positive amount. A history
// whose worst tail is still a gain yields zero.
func HistoricalVaR(returns []float64, value, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("confidence must be in (0, 1), got %v", confidence)
	}
	if len(returns) == 0 {
		return 0, ErrInsufficientReturns
	}

	pnl := make([]float64, len(returns))
	for i, r := range returns {
		pnl[i] = value * r
	}
	sort.Float64s(pnl)

	loss := -Quantile(pnl, 1-confidence)
	if loss < 0 {
		return 0, nil
	}
	return loss, nil
}

// StdDev is the sample standard deviation.
func StdDev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, fmt.Errorf("%w: need 2 returns, got %d", ErrInsufficientReturns, len(xs))
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(len(xs)-1)), nil
}
