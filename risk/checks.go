package risk

import (
	"fmt"
	"math"
	"time"
)

type Rule string

const (
	RuleConcentration Rule = "concentration"
	RuleDailyLoss     Rule = "daily_loss"
	RuleMargin        Rule = "margin_utilization"
	RuleStopLoss      Rule = "stop_loss"
	RuleVaR           Rule = "value_at_risk"
	RuleVolatility    Rule = "volatility"
)

// Check is the outcome of one rule. Instrument is empty for portfolio-wide
// rules. Magnitude is the relative distance past the limit, zero when not
// breached.
type Check struct {
	Rule       Rule    `json:"rule"`
	Instrument string  `json:"instrument,omitempty"`
	Breached   bool    `json:"breached"`
	Observed   float64 `json:"observed"`
	Limit      float64 `json:"limit"`
	Magnitude  float64 `json:"magnitude"`
	Msg        string  `json:"msg,omitempty"`
}

// Scope is the instrument or "global".
func (c Check) Scope() string {
	if c.Instrument == "" {
		return "global"
	}
	return c.Instrument
}

type VaR struct {
	Amount     float64 `json:"amount"`
	Pct        float64 `json:"pct"`
	Confidence float64 `json:"confidence"`
	Samples    int     `json:"samples"`
	Ready      bool    `json:"ready"`
}

type Volatility struct {
	Daily      float64 `json:"daily"`
	Annualized float64 `json:"annualized"`
	Ready      bool    `json:"ready"`
}

// Assessment is the risk picture for one snapshot.
type Assessment struct {
	At              time.Time  `json:"at"`
	Score           float64    `json:"score"`
	Checks          []Check    `json:"checks"`
	VaR             VaR        `json:"var"`
	Volatility      Volatility `json:"volatility"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// Breaches returns the breached checks.
func (a Assessment) Breaches() []Check {
	var out []Check
	for _, c := range a.Checks {
		if c.Breached {
			out = append(out, c)
		}
	}
	return out
}

// BreachedInstruments is the set of instruments with at least one breached
// instrument-level rule.
func (a Assessment) BreachedInstruments() map[string]bool {
	out := make(map[string]bool)
	for _, c := range a.Checks {
		if c.Breached && c.Instrument != "" {
			out[c.Instrument] = true
		}
	}
	return out
}

// PortfolioBreached reports a breach of any portfolio-wide rule.
func (a Assessment) PortfolioBreached() bool {
	for _, c := range a.Checks {
		if c.Breached && c.Instrument == "" {
			return true
		}
	}
	return false
}

// above builds a check that breaches when observed > limit.
func above(r Rule, instr string, observed, limit float64) Check {
	c := Check{Rule: r, Instrument: instr, Observed: observed, Limit: limit}
	if observed > limit {
		c.Breached = true
		c.Magnitude = relative(observed-limit, limit)
	}
	return c
}

// below builds a check that breaches when observed < limit.
func below(r Rule, instr string, observed, limit float64) Check {
	c := Check{Rule: r, Instrument: instr, Observed: observed, Limit: limit}
	if observed < limit {
		c.Breached = true
		c.Magnitude = relative(limit-observed, limit)
	}
	return c
}

func relative(excess, limit float64) float64 {
	if limit == 0 {
		return excess
	}
	return excess / math.Abs(limit)
}

func (c *Check) describe() {
	if !c.Breached {
		return
	}
	switch c.Rule {
	case RuleConcentration:
		c.Msg = fmt.Sprintf("%s weight %.1f%% exceeds max %.1f%%", c.Instrument, 100*c.Observed, 100*c.Limit)
	case RuleStopLoss:
		c.Msg = fmt.Sprintf("%s unrealized %.1f%% below stop-loss %.1f%%", c.Instrument, 100*c.Observed, 100*c.Limit)
	case RuleDailyLoss:
		c.Msg = fmt.Sprintf("daily P&L %.2f%% below limit %.2f%%", 100*c.Observed, 100*c.Limit)
	case RuleMargin:
		c.Msg = fmt.Sprintf("margin utilization %.1f%% exceeds max %.1f%%", 100*c.Observed, 100*c.Limit)
	case RuleVaR:
		c.Msg = fmt.Sprintf("daily VaR %.2f%% of NLV exceeds max %.2f%%", 100*c.Observed, 100*c.Limit)
	case RuleVolatility:
		c.Msg = fmt.Sprintf("annualized volatility %.1f%% exceeds max %.1f%%", 100*c.Observed, 100*c.Limit)
	}
}
