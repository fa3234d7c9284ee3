package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
)

func init() {
	Register(KindRSIMeanReversion, NewRSIMeanReversion)
}

// extremeBand is how far past a threshold RSI must go to count as extreme.
const extremeBand = 10

// RSIMeanReversion buys oversold and sells overbought instruments.
type RSIMeanReversion struct {
	name       string
	period     int
	oversold   float64
	overbought float64
}

func NewRSIMeanReversion(cfg Config) (Strategy, error) {
	p := cfg.Params
	r := &RSIMeanReversion{name: cfg.Name, period: p.RSIPeriod, oversold: p.Oversold, overbought: p.Overbought}
	if r.period == 0 {
		r.period = 14
	}
	if r.oversold == 0 {
		r.oversold = 30
	}
	if r.overbought == 0 {
		r.overbought = 70
	}
	if r.period < 1 {
		return nil, fmt.Errorf("rsi %s: rsi_period must be positive", cfg.Name)
	}
	if r.oversold <= 0 || r.overbought >= 100 || r.oversold >= r.overbought {
		return nil, fmt.Errorf("rsi %s: need 0 < oversold < overbought < 100, got %v/%v", cfg.Name, r.oversold, r.overbought)
	}
	return r, nil
}

func (r *RSIMeanReversion) Name() string { return r.name }
func (r *RSIMeanReversion) Kind() Kind   { return KindRSIMeanReversion }

func (r *RSIMeanReversion) Params() indicators.Params {
	return indicators.Params{RSIPeriod: r.period}
}

func (r *RSIMeanReversion) Evaluate(set indicators.Set, pos *market.Position) (Signal, error) {
	if !set.RSI.Ready {
		return Signal{}, undetermined(r, set)
	}
	sig := signalFor(r, set, pos)
	rsi := set.RSI.Value

	switch {
	case rsi <= r.oversold:
		sig.Direction = Buy
		sig.Reason = fmt.Sprintf("RSI(%d) %.1f at or below %.0f", r.period, rsi, r.oversold)
		if rsi <= r.oversold-extremeBand {
			sig.Strength = 0.8
		} else {
			sig.Strength = math.Max(0.3, (r.oversold-rsi)/r.oversold*2)
		}
	case rsi >= r.overbought:
		sig.Direction = Sell
		sig.Reason = fmt.Sprintf("RSI(%d) %.1f at or above %.0f", r.period, rsi, r.overbought)
		if rsi >= r.overbought+extremeBand {
			sig.Strength = 0.8
		} else {
			sig.Strength = math.Max(0.3, (rsi-r.overbought)/(100-r.overbought)*2)
		}
	}
	sig.Strength = math.Min(sig.Strength, 0.9)
	return sig, nil
}
