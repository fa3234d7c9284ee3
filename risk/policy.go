package risk

import "fmt"

// Limits are the portfolio risk thresholds. Loss thresholds are negative
// fractions: -0.10 means a 10% loss. Optional limits are disabled at zero.
type Limits struct {
	MaxPositionWeight    float64 `json:"max_position_weight" yaml:"max_position_weight"`
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MarginUtilizationMax float64 `json:"margin_utilization_max" yaml:"margin_utilization_max"`
	StopLossThreshold    float64 `json:"stop_loss_threshold" yaml:"stop_loss_threshold"`

	MaxDailyVaR   float64 `json:"max_daily_var,omitempty" yaml:"max_daily_var,omitempty"`
	MaxVolatility float64 `json:"max_volatility,omitempty" yaml:"max_volatility,omitempty"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxPositionWeight:    0.15,
		MaxDailyLoss:         -0.03,
		MarginUtilizationMax: 0.80,
		StopLossThreshold:    -0.10,
		MaxDailyVaR:          0.02,
		MaxVolatility:        0.20,
	}
}

func (l Limits) Validate() error {
	if l.MaxPositionWeight <= 0 || l.MaxPositionWeight > 1 {
		return fmt.Errorf("max_position_weight must be in (0, 1]")
	}
	if l.MaxDailyLoss >= 0 {
		return fmt.Errorf("max_daily_loss must be negative")
	}
	if l.MarginUtilizationMax <= 0 {
		return fmt.Errorf("margin_utilization_max must be positive")
	}
	if l.StopLossThreshold >= 0 {
		return fmt.Errorf("stop_loss_threshold must be negative")
	}
	if l.MaxDailyVaR < 0 {
		return fmt.Errorf("max_daily_var must not be negative")
	}
	if l.MaxVolatility < 0 {
		return fmt.Errorf("max_volatility must not be negative")
	}
	return nil
}

// Weights sets how many score points each breached rule contributes before
// scaling by magnitude.
type Weights struct {
	Concentration  float64 `json:"concentration" yaml:"concentration"`
	DailyLoss      float64 `json:"daily_loss" yaml:"daily_loss"`
	Margin         float64 `json:"margin" yaml:"margin"`
	StopLoss       float64 `json:"stop_loss" yaml:"stop_loss"`
	VaR            float64 `json:"var" yaml:"var"`
	Volatility     float64 `json:"volatility" yaml:"volatility"`
	MagnitudeScale float64 `json:"magnitude_scale" yaml:"magnitude_scale"`
}

func DefaultWeights() Weights {
	return Weights{
		Concentration:  15,
		DailyLoss:      25,
		Margin:         25,
		StopLoss:       10,
		VaR:            15,
		Volatility:     10,
		MagnitudeScale: 1,
	}
}

// Validate rejects negative weights. A negative weight would let a breach
// lower the score.
func (w Weights) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"concentration", w.Concentration},
		{"daily_loss", w.DailyLoss},
		{"margin", w.Margin},
		{"stop_loss", w.StopLoss},
		{"var", w.VaR},
		{"volatility", w.Volatility},
		{"magnitude_scale", w.MagnitudeScale},
	} {
		if f.v < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}
	return nil
}

func (w Weights) of(r Rule) float64 {
	switch r {
	case RuleConcentration:
		return w.Concentration
	case RuleDailyLoss:
		return w.DailyLoss
	case RuleMargin:
		return w.Margin
	case RuleStopLoss:
		return w.StopLoss
	case RuleVaR:
		return w.VaR
	case RuleVolatility:
		return w.Volatility
	}
	return 0
}
