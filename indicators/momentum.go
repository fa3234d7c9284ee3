package indicators

import "fmt"

// Momentum is the fractional price change over lookback points:
// (last - base) / base. 0.05 means the price rose 5%.
func Momentum(values []float64, lookback int) (float64, error) {
	if err := checkPeriod(lookback); err != nil {
		return 0, err
	}
	if len(values) < lookback+1 {
		return 0, insufficient(lookback+1, len(values))
	}

	last := values[len(values)-1]
	base := values[len(values)-1-lookback]
	if base == 0 {
		return 0, fmt.Errorf("momentum base price is zero")
	}
	return (last - base) / base, nil
}
