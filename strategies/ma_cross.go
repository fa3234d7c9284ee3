package strategies

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
)

func init() {
	Register(KindMACrossover, NewMACross)
}

// MACross signals when the fast moving average crosses the slow one. A cross
// is a sign change of fast-slow between two consecutive points. Averages are
// simple unless ma_type is "ema".
type MACross struct {
	name string
	fast int
	slow int
	ema  bool
}

func NewMACross(cfg Config) (Strategy, error) {
	fast, slow := cfg.Params.FastWindow, cfg.Params.SlowWindow
	if fast == 0 {
		fast = 10
	}
	if slow == 0 {
		slow = 30
	}
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("ma crossover %s: need 0 < fast_window < slow_window, got %d/%d", cfg.Name, fast, slow)
	}
	var ema bool
	switch strings.ToLower(cfg.Params.MAType) {
	case "", "sma":
	case "ema":
		ema = true
	default:
		return nil, fmt.Errorf("ma crossover %s: unknown ma_type %q", cfg.Name, cfg.Params.MAType)
	}
	return &MACross{name: cfg.Name, fast: fast, slow: slow, ema: ema}, nil
}

func (m *MACross) Name() string { return m.name }
func (m *MACross) Kind() Kind   { return KindMACrossover }

func (m *MACross) Params() indicators.Params {
	return indicators.Params{FastWindow: m.fast, SlowWindow: m.slow, Exponential: m.ema}
}

func (m *MACross) Evaluate(set indicators.Set, pos *market.Position) (Signal, error) {
	if !set.CrossReady() {
		return Signal{}, undetermined(m, set)
	}
	sig := signalFor(m, set, pos)

	diff, lastDiff := set.Diff()
	bullCross := diff > 0 && lastDiff <= 0
	bearCross := diff < 0 && lastDiff >= 0

	avg := "SMA"
	if m.ema {
		avg = "EMA"
	}
	switch {
	case bullCross:
		sig.Direction = Buy
		sig.Reason = fmt.Sprintf("%s(%d) %.4f crossed above %s(%d) %.4f", avg, m.fast, set.Fast.Value, avg, m.slow, set.Slow.Value)
	case bearCross:
		sig.Direction = Sell
		sig.Reason = fmt.Sprintf("%s(%d) %.4f crossed below %s(%d) %.4f", avg, m.fast, set.Fast.Value, avg, m.slow, set.Slow.Value)
	default:
		return sig, nil
	}
	if set.Slow.Value != 0 {
		sig.Strength = clamp01(math.Abs(diff) / math.Abs(set.Slow.Value) * 10)
	}
	return sig, nil
}
