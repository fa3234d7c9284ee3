package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
)

func init() {
	Register(KindMomentum, NewMomentum)
}

// Momentum follows moves larger than a threshold over a lookback window.
type Momentum struct {
	name      string
	lookback  int
	threshold float64
}

func NewMomentum(cfg Config) (Strategy, error) {
	m := &Momentum{name: cfg.Name, lookback: cfg.Params.Lookback, threshold: cfg.Params.Threshold}
	if m.lookback == 0 {
		m.lookback = 20
	}
	if m.threshold == 0 {
		m.threshold = 0.05
	}
	if m.lookback < 1 || m.threshold < 0 {
		return nil, fmt.Errorf("momentum %s: lookback and threshold must be positive", cfg.Name)
	}
	return m, nil
}

func (m *Momentum) Name() string { return m.name }
func (m *Momentum) Kind() Kind   { return KindMomentum }

func (m *Momentum) Params() indicators.Params {
	return indicators.Params{MomentumLookback: m.lookback}
}

func (m *Momentum) Evaluate(set indicators.Set, pos *market.Position) (Signal, error) {
	if !set.Momentum.Ready {
		return Signal{}, undetermined(m, set)
	}
	sig := signalFor(m, set, pos)
	mom := set.Momentum.Value

	switch {
	case mom >= m.threshold:
		sig.Direction = Buy
	case mom <= -m.threshold:
		sig.Direction = Sell
	default:
		return sig, nil
	}
	sig.Strength = clamp01(math.Abs(mom) / (2 * m.threshold))
	sig.Reason = fmt.Sprintf("%d-point momentum %+.2f%%", m.lookback, 100*mom)
	return sig, nil
}
