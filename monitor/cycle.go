package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/journal"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/router"
	"github.com/rustyeddy/portmon/session"
	"github.com/rustyeddy/portmon/strategies"
	"github.com/sirupsen/logrus"
)

// cut is one cycle's pulled data. Nothing in it touches State until the
// whole pull has succeeded.
type cut struct {
	account   market.AccountSnapshot
	positions []market.Position
	prices    map[string]*market.PriceSeries
}

// RunCycle performs one monitoring cycle. A failed pull leaves the previous
// snapshot in place.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	now := o.clock()
	o.mu.Lock()
	o.state.Cycle++
	cycle := o.state.Cycle
	o.mu.Unlock()
	log := o.log.WithField("cycle", cycle)

	o.seed(now)

	if err := o.upkeep(ctx, now); err != nil {
		log.WithError(err).Error("session failed")
		o.publish(now)
		return fmt.Errorf("cycle %d: %w", cycle, err)
	}
	if !o.canPull() {
		log.WithField("state", o.Session().String()).Debug("session not connected, skipping")
		o.publish(now)
		return fmt.Errorf("%w: session %s", ErrSkipped, o.Session())
	}

	c, err := o.pull(ctx)
	if err == nil {
		err = o.checkFresh(c, now)
	}
	if err != nil {
		if broker.IsFatal(err) {
			_ = o.fail(ctx, now, err)
			log.WithError(err).Error("session failed")
		} else {
			o.cycleFailed(ctx, now, err, log)
		}
		o.publish(now)
		return fmt.Errorf("cycle %d: %w", cycle, err)
	}

	snap := o.commit(c, now)
	o.analyze(ctx, snap, now, log)
	o.publish(now)
	return nil
}

func (o *Orchestrator) canPull() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session.CanPull()
}

// universe is every strategy instrument plus every held one.
func (o *Orchestrator) universe(positions []market.Position) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if o.engine != nil {
		for _, s := range o.engine.Instruments() {
			add(s)
		}
	}
	for _, p := range positions {
		add(p.Instrument)
	}
	sort.Strings(out)
	return out
}

func (o *Orchestrator) window() int {
	n := o.opts.HistoryWindow
	if o.engine != nil && o.engine.History() > n {
		n = o.engine.History()
	}
	return n
}

func (o *Orchestrator) pullSnapshot(ctx context.Context) (market.AccountSnapshot, []market.Position, error) {
	var (
		acct      market.AccountSnapshot
		positions []market.Position
	)
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		acct, positions, err = o.feed.PullSnapshot(ctx)
		return err
	})
	if err != nil {
		return acct, nil, fmt.Errorf("pull snapshot: %w", err)
	}
	return acct, positions, nil
}

func (o *Orchestrator) pull(ctx context.Context) (cut, error) {
	acct, positions, err := o.pullSnapshot(ctx)
	if err != nil {
		return cut{}, err
	}
	c := cut{account: acct, positions: positions, prices: make(map[string]*market.PriceSeries)}

	window := o.window()
	for _, instr := range o.universe(positions) {
		var s *market.PriceSeries
		err := o.call(ctx, func(ctx context.Context) error {
			var err error
			s, err = o.feed.PullPrices(ctx, instr, window)
			return err
		})
		if err != nil {
			return cut{}, fmt.Errorf("pull prices %s: %w", instr, err)
		}
		c.prices[instr] = s
	}
	return c, nil
}

func (o *Orchestrator) checkFresh(c cut, now time.Time) error {
	if c.account.CapturedAt.IsZero() {
		return nil
	}
	limit := time.Duration(o.opts.StaleAfter) * o.opts.Interval
	if age := now.Sub(c.account.CapturedAt); age > limit {
		return fmt.Errorf("%w: captured %s ago, limit %s", ErrStaleData, age.Round(time.Second), limit)
	}
	return nil
}

// cycleFailed counts a failed cycle and demotes the session once the
// consecutive failure limit is reached.
func (o *Orchestrator) cycleFailed(ctx context.Context, now time.Time, err error, log *logrus.Entry) {
	o.mu.Lock()
	o.state.Failures++
	o.state.LastError = err.Error()
	failures := o.state.Failures
	o.mu.Unlock()

	log.WithError(err).WithField("failures", failures).Warn("cycle failed")

	if isStale(err) {
		o.dispatch(ctx, []alert.Alert{
			alert.New(alert.KindConnectivity, alert.Warning, "", "stale_data", err.Error(), now),
		}, now)
	}
	if failures >= o.opts.MaxFailures {
		o.transit(ctx, func() (session.Transition, bool) {
			return o.session.Demote(now, fmt.Sprintf("%d consecutive failed cycles: %v", failures, err))
		})
	}
}

// commit makes the cut the current state.
func (o *Orchestrator) commit(c cut, now time.Time) market.Snapshot {
	if c.account.CapturedAt.IsZero() {
		c.account.CapturedAt = now
	}
	snap := market.NewSnapshot(c.account, c.positions)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.Snapshot = snap
	o.state.HasSnapshot = true
	o.state.Failures = 0
	o.state.LastError = ""
	o.state.LastCycle = now

	for instr, s := range c.prices {
		held, ok := o.state.Series[instr]
		if !ok {
			held = market.NewPriceSeries(instr, o.opts.Retention)
			o.state.Series[instr] = held
		}
		held.Merge(s)
	}

	if day := o.returns.DayOf(now); day != o.state.day {
		o.state.day = day
		o.state.DayStartPnL = snap.Account.TotalPnL()
	}
	o.returns.Observe(now, snap.Account.NetLiquidation)
	return snap
}

// analyze derives indicators, risk, signals, alerts and orders from snap.
func (o *Orchestrator) analyze(ctx context.Context, snap market.Snapshot, now time.Time, log *logrus.Entry) {
	o.mu.RLock()
	inputs := strategies.Inputs{}
	if o.engine != nil {
		for _, req := range o.engine.Requirements() {
			if s, ok := o.state.Series[req.Instrument]; ok {
				inputs[req.Target] = indicators.Compute(s, req.Params)
			}
		}
	}
	in := risk.Inputs{
		Snapshot:    snap,
		DayStartPnL: o.state.DayStartPnL,
		Returns:     o.returns.Returns(),
		At:          now,
	}
	o.mu.RUnlock()

	assessment := o.scorer.Assess(in)

	var res strategies.Result
	if o.engine != nil {
		res = o.engine.Evaluate(inputs, snap, now)
	}

	rep := o.raiseAlerts(ctx, assessment, res.Signals, now)

	var orders []router.Result
	if o.opts.AutoTrade && o.router != nil {
		view := router.ViewOf(snap, assessment)
		for _, sig := range res.Signals {
			var r router.Result
			err := o.call(ctx, func(ctx context.Context) error {
				var err error
				r, err = o.router.Submit(ctx, sig, view)
				return err
			})
			if err != nil {
				log.WithError(err).WithField("instrument", sig.Instrument).Warn("order routing failed")
			}
			orders = append(orders, r)
		}
	}

	o.mu.Lock()
	o.state.Indicators = inputs
	o.state.Assessment = assessment
	o.state.Signals = res.Signals
	o.state.Strategy = res
	o.state.Orders = orders
	o.mu.Unlock()

	if err := o.journal.RecordSnapshot(snap); err != nil {
		log.WithError(err).Warn("journal snapshot")
	}
	o.maybeSaveSnapshot(ctx, snap, now, log)

	log.WithFields(logrus.Fields{
		"nlv":          snap.Account.NetLiquidation,
		"score":        assessment.Score,
		"breaches":     len(assessment.Breaches()),
		"signals":      len(res.Signals),
		"holds":        res.Holds,
		"unchanged":    res.Unchanged,
		"undetermined": len(res.Undetermined),
		"sent":         len(rep.Sent),
		"suppressed":   len(rep.Suppressed),
	}).Info("cycle complete")
}

// raiseAlerts turns breaches and signals into alert candidates. Risk entries
// whose breach has cleared are resolved first so a recurrence alerts at once.
func (o *Orchestrator) raiseAlerts(ctx context.Context, a risk.Assessment, signals []strategies.Signal, now time.Time) alert.Report {
	if o.dispatcher == nil {
		return alert.Report{}
	}

	var cands []alert.Alert
	active := make(map[alert.Key]bool)
	for _, c := range a.Breaches() {
		al := alert.New(alert.KindRisk, riskSeverity(c), c.Instrument, string(c.Rule), c.Msg, now)
		active[al.Key] = true
		cands = append(cands, al)
	}
	for _, k := range o.dispatcher.Reconcile(alert.KindRisk, active) {
		o.log.WithField("key", k.String()).Info("risk condition resolved")
	}
	o.dispatcher.Reconcile(alert.KindConnectivity, nil)

	for _, s := range signals {
		msg := fmt.Sprintf("%s %s @ %.2f strength %.2f: %s", s.Direction, s.Instrument, s.Price, s.Strength, s.Reason)
		rule := s.Strategy + "_" + strings.ToLower(s.Direction.String())
		cands = append(cands, alert.New(alert.KindSignal, alert.Info, s.Instrument, rule, msg, now))
	}
	return o.dispatch(ctx, cands, now)
}

func riskSeverity(c risk.Check) alert.Severity {
	switch {
	case c.Rule == risk.RuleDailyLoss, c.Rule == risk.RuleMargin:
		return alert.Critical
	case c.Magnitude >= 0.5:
		return alert.Critical
	}
	return alert.Warning
}

// dispatch hands candidates to the dispatcher and journals what was sent.
func (o *Orchestrator) dispatch(ctx context.Context, cands []alert.Alert, now time.Time) alert.Report {
	if o.dispatcher == nil || len(cands) == 0 {
		return alert.Report{}
	}
	rep := o.dispatcher.Dispatch(ctx, cands, now)
	for _, a := range rep.Sent {
		if err := o.journal.RecordAlert(a); err != nil {
			o.log.WithError(err).WithField("key", a.Key.String()).Warn("journal alert")
		}
	}
	return rep
}

func (o *Orchestrator) maybeSaveSnapshot(ctx context.Context, snap market.Snapshot, now time.Time, log *logrus.Entry) {
	n := o.opts.SnapshotEvery
	if n <= 0 {
		return
	}
	o.mu.RLock()
	cycle, dayStart := o.state.Cycle, o.state.DayStartPnL
	o.mu.RUnlock()
	if cycle%n != 0 {
		return
	}

	var orders []broker.OpenOrder
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		orders, err = o.feed.OpenOrders(ctx)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("open orders for snapshot")
	}
	path := filepath.Join(o.opts.SnapshotDir, journal.DefaultSnapshotName(now))
	if err := journal.WriteSnapshotFile(path, journal.NewSnapshotFile(snap, orders, dayStart)); err != nil {
		log.WithError(err).Warn("save snapshot")
		return
	}
	log.WithField("path", path).Debug("snapshot saved")
}
