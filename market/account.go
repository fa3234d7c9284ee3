package market

import (
	"math"
	"sort"
	"time"
)

// AccountSnapshot is the account state captured by a single feed pull. It is
// never mutated; the next cycle supersedes it.
type AccountSnapshot struct {
	ID                string    `json:"id" yaml:"id"`
	NetLiquidation    float64   `json:"net_liquidation" yaml:"net_liquidation"`
	AvailableCash     float64   `json:"available_cash" yaml:"available_cash"`
	UnrealizedPnL     float64   `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	RealizedPnL       float64   `json:"realized_pnl" yaml:"realized_pnl"`
	MarginUsed        float64   `json:"margin_used" yaml:"margin_used"`
	MarginAvailable   float64   `json:"margin_available" yaml:"margin_available"`
	MarginUtilization float64   `json:"margin_utilization" yaml:"margin_utilization"`
	CapturedAt        time.Time `json:"captured_at" yaml:"captured_at"`
}

// TotalPnL is realized plus unrealized P&L.
func (a AccountSnapshot) TotalPnL() float64 {
	return a.RealizedPnL + a.UnrealizedPnL
}

// Margin is the utilization derived from MarginUsed and MarginAvailable.
// Snapshots that carry neither fall back to the reported MarginUtilization.
func (a AccountSnapshot) Margin() float64 {
	if a.MarginUsed == 0 && a.MarginAvailable == 0 {
		return a.MarginUtilization
	}
	return MarginUtilization(a.MarginUsed, a.MarginAvailable)
}

// MarginUtilization returns used/available. An exhausted margin line with
// anything in use reports 1.
func MarginUtilization(used, available float64) float64 {
	if available <= 0 {
		if used > 0 {
			return 1
		}
		return 0
	}
	return used / available
}

// Position is a holding in one instrument. Weight is relative to the net
// liquidation value of the snapshot that owns the position.
type Position struct {
	Instrument    string  `json:"instrument" yaml:"instrument"`
	Quantity      float64 `json:"quantity" yaml:"quantity"`
	AvgCost       float64 `json:"avg_cost" yaml:"avg_cost"`
	MarketPrice   float64 `json:"market_price" yaml:"market_price"`
	MarketValue   float64 `json:"market_value" yaml:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	Weight        float64 `json:"weight" yaml:"weight"`
}

// CostBasis is |avg cost * quantity|.
func (p Position) CostBasis() float64 {
	return math.Abs(p.AvgCost * p.Quantity)
}

// UnrealizedPct is unrealized P&L as a fraction of cost basis.
func (p Position) UnrealizedPct() float64 {
	basis := p.CostBasis()
	if basis == 0 {
		return 0
	}
	return p.UnrealizedPnL / basis
}

// Snapshot pairs an account capture with the positions pulled alongside it.
type Snapshot struct {
	Account   AccountSnapshot `json:"account" yaml:"account"`
	Positions []Position      `json:"positions" yaml:"positions"`
}

// NewSnapshot copies positions, fills in missing market values, and
// recomputes every weight from acct.NetLiquidation. Positions are ordered by
// instrument.
func NewSnapshot(acct AccountSnapshot, positions []Position) Snapshot {
	out := make([]Position, len(positions))
	copy(out, positions)

	for i := range out {
		p := &out[i]
		if p.MarketValue == 0 && p.MarketPrice != 0 {
			p.MarketValue = p.MarketPrice * p.Quantity
		}
		p.Weight = 0
		if acct.NetLiquidation != 0 {
			p.Weight = p.MarketValue / acct.NetLiquidation
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })

	return Snapshot{Account: acct, Positions: out}
}

// Position looks up the holding for instrument.
func (s Snapshot) Position(instrument string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Instrument == instrument {
			return p, true
		}
	}
	return Position{}, false
}

// Instruments lists held instruments.
func (s Snapshot) Instruments() []string {
	out := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		out = append(out, p.Instrument)
	}
	return out
}

// MaxWeight returns the largest absolute weight and its instrument.
func (s Snapshot) MaxWeight() (string, float64) {
	var (
		instr string
		max   float64
	)
	for _, p := range s.Positions {
		if w := math.Abs(p.Weight); w > max {
			instr, max = p.Instrument, w
		}
	}
	return instr, max
}

// TotalMarketValue sums position market values.
func (s Snapshot) TotalMarketValue() float64 {
	var sum float64
	for _, p := range s.Positions {
		sum += p.MarketValue
	}
	return sum
}

// Age reports how old the account capture is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Account.CapturedAt)
}
