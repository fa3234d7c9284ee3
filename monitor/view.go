package monitor

import (
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/router"
	"github.com/rustyeddy/portmon/strategies"
)

// View is the published picture of one cycle.
type View struct {
	Cycle        int                     `json:"cycle"`
	At           time.Time               `json:"at"`
	Session      string                  `json:"session"`
	Mode         string                  `json:"mode"`
	Failures     int                     `json:"failures"`
	LastError    string                  `json:"last_error,omitempty"`
	Account      *market.AccountSnapshot `json:"account,omitempty"`
	Positions    []market.Position       `json:"positions,omitempty"`
	DailyPnL     float64                 `json:"daily_pnl"`
	Risk         *risk.Assessment        `json:"risk,omitempty"`
	Signals      []strategies.Signal     `json:"signals,omitempty"`
	Undetermined []strategies.Target     `json:"undetermined,omitempty"`
	Orders       []router.Result         `json:"orders,omitempty"`
	Alerts       []alert.Entry           `json:"alerts,omitempty"`
}

// View builds the current view. Only the loop goroutine may call it while
// cycles are running.
func (o *Orchestrator) View(now time.Time) View {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v := View{
		Cycle:     o.state.Cycle,
		At:        now,
		Session:   o.session.State().String(),
		Mode:      "paper",
		Failures:  o.state.Failures,
		LastError: o.state.LastError,
	}
	if o.router != nil && o.router.Live() {
		v.Mode = "live"
	}
	if o.state.HasSnapshot {
		acct := o.state.Snapshot.Account
		a := o.state.Assessment
		v.Account = &acct
		v.Positions = append([]market.Position(nil), o.state.Snapshot.Positions...)
		v.DailyPnL = acct.TotalPnL() - o.state.DayStartPnL
		v.Risk = &a
		v.Signals = append([]strategies.Signal(nil), o.state.Signals...)
		v.Undetermined = append([]strategies.Target(nil), o.state.Strategy.Undetermined...)
		v.Orders = append([]router.Result(nil), o.state.Orders...)
	}
	if o.dispatcher != nil {
		v.Alerts = o.dispatcher.Entries()
	}
	return v
}

func (o *Orchestrator) publish(now time.Time) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(o.View(now))
}
