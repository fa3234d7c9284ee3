package indicators

import (
	"time"

	"github.com/rustyeddy/portmon/market"
)

// Params selects which indicators Compute evaluates. Zero disables one.
type Params struct {
	FastWindow       int `json:"fast_window,omitempty" yaml:"fast_window,omitempty"`
	SlowWindow       int `json:"slow_window,omitempty" yaml:"slow_window,omitempty"`
	RSIPeriod        int `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty"`
	MomentumLookback int `json:"momentum_lookback,omitempty" yaml:"momentum_lookback,omitempty"`

	// Exponential switches Fast and Slow to EMAs.
	Exponential bool `json:"exponential,omitempty" yaml:"exponential,omitempty"`
}

// Required is the number of points needed before every requested reading,
// including the previous-point moving averages, is ready.
func (p Params) Required() int {
	n := 1
	if p.FastWindow > 0 && p.FastWindow+1 > n {
		n = p.FastWindow + 1
	}
	if p.SlowWindow > 0 && p.SlowWindow+1 > n {
		n = p.SlowWindow + 1
	}
	if p.RSIPeriod > 0 && p.RSIPeriod+1 > n {
		n = p.RSIPeriod + 1
	}
	if p.MomentumLookback > 0 && p.MomentumLookback+1 > n {
		n = p.MomentumLookback + 1
	}
	return n
}

// Set holds the indicator readings for one instrument at one point in time.
// PrevFast and PrevSlow are the averages over the window ending one point
// earlier, so a crossover is a sign change of Fast-Slow between them.
type Set struct {
	Instrument string    `json:"instrument"`
	At         time.Time `json:"at"`
	Points     int       `json:"points"`
	Price      Reading   `json:"price"`
	Fast       Reading   `json:"fast"`
	Slow       Reading   `json:"slow"`
	PrevFast   Reading   `json:"prev_fast"`
	PrevSlow   Reading   `json:"prev_slow"`
	RSI        Reading   `json:"rsi"`
	Momentum   Reading   `json:"momentum"`
}

// CrossReady reports whether all four moving averages are determined.
func (s Set) CrossReady() bool {
	return s.Fast.Ready && s.Slow.Ready && s.PrevFast.Ready && s.PrevSlow.Ready
}

// Diff returns Fast-Slow and the previous point's PrevFast-PrevSlow.
func (s Set) Diff() (diff, prev float64) {
	return s.Fast.Value - s.Slow.Value, s.PrevFast.Value - s.PrevSlow.Value
}

// Compute evaluates the requested indicators over the series closes.
func Compute(series *market.PriceSeries, p Params) Set {
	if series == nil {
		return Set{}
	}
	return ComputeValues(series.Instrument, series.Closes(), lastTime(series), p)
}

// ComputeValues is Compute over a raw window, oldest value first.
func ComputeValues(instrument string, closes []float64, at time.Time, p Params) Set {
	set := Set{Instrument: instrument, At: at, Points: len(closes)}
	if len(closes) == 0 {
		return set
	}
	set.Price = ready(closes[len(closes)-1])
	prev := closes[:len(closes)-1]

	avg := SMA
	if p.Exponential {
		avg = EMA
	}
	if p.FastWindow > 0 {
		set.Fast = readingOf(avg(closes, p.FastWindow))
		set.PrevFast = readingOf(avg(prev, p.FastWindow))
	}
	if p.SlowWindow > 0 {
		set.Slow = readingOf(avg(closes, p.SlowWindow))
		set.PrevSlow = readingOf(avg(prev, p.SlowWindow))
	}
	if p.RSIPeriod > 0 {
		set.RSI = readingOf(RSI(closes, p.RSIPeriod))
	}
	if p.MomentumLookback > 0 {
		set.Momentum = readingOf(Momentum(closes, p.MomentumLookback))
	}
	return set
}

func lastTime(s *market.PriceSeries) time.Time {
	if p, ok := s.Last(); ok {
		return p.Time
	}
	return time.Time{}
}
