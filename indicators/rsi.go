package indicators

// RSI is Wilder's relative strength index over period changes. It needs
// period+1 values. The first average gain and loss are simple means of the
// first period changes; later changes are folded in with Wilder smoothing.
//
// A window with no losses reads 100 and a flat window reads 50. The result is
// always within [0, 100].
func RSI(values []float64, period int) (float64, error) {
	if err := checkPeriod(period); err != nil {
		return 0, err
	}
	if len(values) < period+1 {
		return 0, insufficient(period+1, len(values))
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	p := float64(period)
	gain /= p
	loss /= p

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*(p-1) + g) / p
		loss = (loss*(p-1) + l) / p
	}

	switch {
	case loss == 0 && gain == 0:
		return 50, nil
	case loss == 0:
		return 100, nil
	}
	rsi := 100 - 100/(1+gain/loss)
	return clamp(rsi, 0, 100), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
