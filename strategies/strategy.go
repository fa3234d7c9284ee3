package strategies

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
)

// ErrUndetermined is returned when the indicators a strategy needs are not
// ready. It wraps indicators.ErrInsufficientHistory.
var ErrUndetermined = fmt.Errorf("strategy inputs undetermined: %w", indicators.ErrInsufficientHistory)

type Kind string

const (
	KindMACrossover      Kind = "ma_crossover"
	KindRSIMeanReversion Kind = "rsi_mean_reversion"
	KindMomentum         Kind = "momentum"
)

type Direction int

const (
	Hold Direction = iota
	Buy
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Signal is a strategy's recommendation for one instrument in one cycle.
type Signal struct {
	Instrument string    `json:"instrument"`
	Strategy   string    `json:"strategy"`
	Kind       Kind      `json:"kind"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`
	Price      float64   `json:"price"`
	Held       float64   `json:"held"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

func (s Signal) Actionable() bool { return s.Direction != Hold }

// Strategy turns an indicator set, and the current position if any, into a
// signal. Implementations are stateless.
type Strategy interface {
	Name() string
	Kind() Kind
	Params() indicators.Params
	Evaluate(set indicators.Set, pos *market.Position) (Signal, error)
}

// Params is the union of every built-in strategy's knobs.
type Params struct {
	FastWindow  int     `json:"fast_window,omitempty" yaml:"fast_window,omitempty"`
	SlowWindow  int     `json:"slow_window,omitempty" yaml:"slow_window,omitempty"`
	MAType      string  `json:"ma_type,omitempty" yaml:"ma_type,omitempty"`
	RSIPeriod   int     `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty"`
	Oversold    float64 `json:"oversold,omitempty" yaml:"oversold,omitempty"`
	Overbought  float64 `json:"overbought,omitempty" yaml:"overbought,omitempty"`
	Lookback    int     `json:"lookback,omitempty" yaml:"lookback,omitempty"`
	Threshold   float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	MinStrength float64 `json:"min_strength,omitempty" yaml:"min_strength,omitempty"`
}

// Config declares one strategy instance.
type Config struct {
	Name        string   `json:"name" yaml:"name"`
	Kind        Kind     `json:"kind" yaml:"kind"`
	Instruments []string `json:"instruments" yaml:"instruments"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Params      Params   `json:"params" yaml:"params"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("strategy %s: at least one instrument is required", c.Name)
	}
	if c.Params.MinStrength < 0 || c.Params.MinStrength > 1 {
		return fmt.Errorf("strategy %s: min_strength must be between 0 and 1", c.Name)
	}
	_, err := New(c)
	return err
}

// Factory builds a strategy from its config.
type Factory func(Config) (Strategy, error)

var registry = make(map[Kind]Factory)

// Register makes a strategy kind available to New. Built-in kinds register
// themselves at init.
func Register(kind Kind, f Factory) {
	registry[kind] = f
}

// Kinds lists the registered strategy kinds.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// New builds the strategy described by cfg.
func New(cfg Config) (Strategy, error) {
	kind := normalizeKind(cfg.Kind)
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q (supported: ma_crossover, rsi_mean_reversion, momentum)", cfg.Kind)
	}
	cfg.Kind = kind
	return f(cfg)
}

func normalizeKind(k Kind) Kind {
	switch strings.ToLower(strings.TrimSpace(string(k))) {
	case "ma_crossover", "ma-crossover", "ma-cross", "macross", "ma_cross":
		return KindMACrossover
	case "rsi_mean_reversion", "rsi-mean-reversion", "rsi":
		return KindRSIMeanReversion
	case "momentum", "mom":
		return KindMomentum
	}
	return k
}

func signalFor(s Strategy, set indicators.Set, pos *market.Position) Signal {
	sig := Signal{
		Instrument: set.Instrument,
		Strategy:   s.Name(),
		Kind:       s.Kind(),
		Direction:  Hold,
		Price:      set.Price.Value,
		At:         set.At,
	}
	if pos != nil {
		sig.Held = pos.Quantity
	}
	return sig
}

func undetermined(s Strategy, set indicators.Set) error {
	return fmt.Errorf("%w: %s on %s has %d of %d points",
		ErrUndetermined, s.Name(), set.Instrument, set.Points, s.Params().Required())
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
