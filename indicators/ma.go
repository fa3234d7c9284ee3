package indicators

// SMA is the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period {
		return 0, insufficient(period, len(values))
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA is the exponential moving average seeded with the SMA of the first
// period values.
func EMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period {
		return 0, insufficient(period, len(values))
	}

	k := 2.0 / float64(period+1)
	ema, _ := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
	}
	return ema, nil
}
