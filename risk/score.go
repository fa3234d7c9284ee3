package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/portmon/market"
)

const MaxScore = 100

// Config configures a Scorer. Zero values fall back to defaults.
type Config struct {
	Limits        Limits  `json:"limits" yaml:"limits"`
	Weights       Weights `json:"weights" yaml:"weights"`
	VaRConfidence float64 `json:"var_confidence" yaml:"var_confidence"`
	ReturnWindow  int     `json:"return_window" yaml:"return_window"`
	MinSamples    int     `json:"min_samples" yaml:"min_samples"`
}

func DefaultConfig() Config {
	return Config{
		Limits:        DefaultLimits(),
		Weights:       DefaultWeights(),
		VaRConfidence: 0.95,
		ReturnWindow:  250,
		MinSamples:    10,
	}
}

// Inputs is everything a single assessment looks at.
type Inputs struct {
	Snapshot    market.Snapshot
	DayStartPnL float64   // realized+unrealized at the start of the trading day
	Returns     []float64 // daily portfolio returns, oldest first
	At          time.Time
}

// Scorer evaluates risk rules against a snapshot. It keeps no state between
// calls: the same inputs always produce the same assessment.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Limits == (Limits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.VaRConfidence <= 0 || cfg.VaRConfidence >= 1 {
		cfg.VaRConfidence = def.VaRConfidence
	}
	if cfg.ReturnWindow <= 0 {
		cfg.ReturnWindow = def.ReturnWindow
	}
	if cfg.MinSamples < 2 {
		cfg.MinSamples = def.MinSamples
	}
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config { return s.cfg }

// Assess runs every rule against in and scores the breaches.
func (s *Scorer) Assess(in Inputs) Assessment {
	lim := s.cfg.Limits
	acct := in.Snapshot.Account
	nlv := acct.NetLiquidation

	a := Assessment{At: in.At}
	if a.At.IsZero() {
		a.At = acct.CapturedAt
	}

	for _, p := range in.Snapshot.Positions {
		a.Checks = append(a.Checks, above(RuleConcentration, p.Instrument, math.Abs(p.Weight), lim.MaxPositionWeight))
	}
	for _, p := range in.Snapshot.Positions {
		a.Checks = append(a.Checks, below(RuleStopLoss, p.Instrument, p.UnrealizedPct(), lim.StopLossThreshold))
	}

	var daily float64
	if nlv > 0 {
		daily = (acct.TotalPnL() - in.DayStartPnL) / nlv
	}
	a.Checks = append(a.Checks,
		below(RuleDailyLoss, "", daily, lim.MaxDailyLoss),
		above(RuleMargin, "", acct.Margin(), lim.MarginUtilizationMax),
	)

	returns := in.Returns
	if len(returns) > s.cfg.ReturnWindow {
		returns = returns[len(returns)-s.cfg.ReturnWindow:]
	}
	a.VaR = VaR{Confidence: s.cfg.VaRConfidence, Samples: len(returns)}
	if len(returns) >= s.cfg.MinSamples && nlv > 0 {
		if amt, err := HistoricalVaR(returns, nlv, s.cfg.VaRConfidence); err == nil {
			a.VaR.Amount = amt
			a.VaR.Pct = amt / nlv
			a.VaR.Ready = true
		}
	}
	if sd, err := StdDev(returns); err == nil {
		a.Volatility = Volatility{Daily: sd, Annualized: sd * math.Sqrt(TradingDays), Ready: true}
	}

	if lim.MaxDailyVaR > 0 && a.VaR.Ready {
		a.Checks = append(a.Checks, above(RuleVaR, "", a.VaR.Pct, lim.MaxDailyVaR))
	}
	if lim.MaxVolatility > 0 && a.Volatility.Ready && len(returns) >= s.cfg.MinSamples {
		a.Checks = append(a.Checks, above(RuleVolatility, "", a.Volatility.Annualized, lim.MaxVolatility))
	}

	for i := range a.Checks {
		a.Checks[i].describe()
	}
	a.Score = s.Score(a.Checks)
	a.Recommendations = recommend(a)
	return a
}

// Score sums each breached check's weight scaled by its magnitude and caps
// the total at MaxScore. Adding a breach or growing a magnitude never lowers
// the score.
func (s *Scorer) Score(checks []Check) float64 {
	w := s.cfg.Weights
	var total float64
	for _, c := range checks {
		if !c.Breached {
			continue
		}
		total += w.of(c.Rule) * (1 + w.MagnitudeScale*c.Magnitude)
	}
	return math.Min(total, MaxScore)
}

func recommend(a Assessment) []string {
	var out []string
	seen := map[Rule]bool{}
	for _, c := range a.Breaches() {
		switch c.Rule {
		case RuleConcentration:
			out = append(out, fmt.Sprintf("Trim %s toward %.0f%% of the portfolio", c.Instrument, 100*c.Limit))
		case RuleStopLoss:
			out = append(out, fmt.Sprintf("Review the stop on %s; it is down %.1f%%", c.Instrument, -100*c.Observed))
		default:
			if seen[c.Rule] {
				continue
			}
			seen[c.Rule] = true
			switch c.Rule {
			case RuleDailyLoss:
				out = append(out, "Daily loss limit hit; pause new entries for the session")
			case RuleMargin:
				out = append(out, "Reduce leverage to free margin")
			case RuleVaR:
				out = append(out, "Value at risk is elevated; reduce gross exposure")
			case RuleVolatility:
				out = append(out, "Portfolio volatility is high; add lower-volatility holdings")
			}
		}
	}
	if a.Score < 20 && len(out) == 0 && len(a.Checks) > 0 {
		out = append(out, "Risk within limits")
	}
	return out
}
