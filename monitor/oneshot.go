package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/journal"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/session"
)

// The one-shot reads below back the CLI. They must not run concurrently
// with Run.

// ConnectionReport is the result of TestConnection.
type ConnectionReport struct {
	Endpoint broker.Endpoint
	State    session.State
	Latency  time.Duration
}

// Summary is a point-in-time account overview.
type Summary struct {
	Snapshot   market.Snapshot
	DailyPnL   float64
	Assessment risk.Assessment
}

// Connect brings the session to Connected now, ignoring any retry backoff.
func (o *Orchestrator) Connect(ctx context.Context) error {
	now := o.clock()
	switch o.Session() {
	case session.Connected:
		return nil
	case session.Fatal:
		return o.fatal
	case session.Disconnected:
		if err := o.connect(ctx, now); err != nil {
			return err
		}
	default:
		if err := o.upkeep(ctx, now); err != nil {
			return err
		}
	}
	if !o.canPull() {
		return fmt.Errorf("%w: session %s: %s", broker.ErrNotConnected, o.Session(), o.lastReason())
	}
	return nil
}

func (o *Orchestrator) lastReason() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h := o.session.History()
	if len(h) == 0 {
		return "no attempt made"
	}
	return h[len(h)-1].Reason
}

// TestConnection connects and times one heartbeat.
func (o *Orchestrator) TestConnection(ctx context.Context) (ConnectionReport, error) {
	rep := ConnectionReport{Endpoint: o.opts.Endpoint}
	if err := o.Connect(ctx); err != nil {
		rep.State = o.Session()
		return rep, err
	}
	start := time.Now()
	err := o.call(ctx, o.feed.Heartbeat)
	rep.Latency = time.Since(start)
	rep.State = o.Session()
	if err != nil {
		return rep, fmt.Errorf("heartbeat: %w", err)
	}
	return rep, nil
}

// Summary pulls the account and assesses its risk.
func (o *Orchestrator) Summary(ctx context.Context) (Summary, error) {
	if err := o.Connect(ctx); err != nil {
		return Summary{}, err
	}
	now := o.clock()
	o.seed(now)

	acct, positions, err := o.pullSnapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	snap := o.commit(cut{account: acct, positions: positions}, now)

	o.mu.RLock()
	in := risk.Inputs{
		Snapshot:    snap,
		DayStartPnL: o.state.DayStartPnL,
		Returns:     o.returns.Returns(),
		At:          now,
	}
	o.mu.RUnlock()

	a := o.scorer.Assess(in)
	return Summary{
		Snapshot:   snap,
		DailyPnL:   snap.Account.TotalPnL() - in.DayStartPnL,
		Assessment: a,
	}, nil
}

// Positions pulls the current holdings with weights filled in.
func (o *Orchestrator) Positions(ctx context.Context) ([]market.Position, error) {
	if err := o.Connect(ctx); err != nil {
		return nil, err
	}
	acct, positions, err := o.pullSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return market.NewSnapshot(acct, positions).Positions, nil
}

// Orders lists working orders.
func (o *Orchestrator) Orders(ctx context.Context) ([]broker.OpenOrder, error) {
	if err := o.Connect(ctx); err != nil {
		return nil, err
	}
	var orders []broker.OpenOrder
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		orders, err = o.feed.OpenOrders(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	return orders, nil
}

// SaveSnapshot writes the account, positions and working orders to path, or
// to a timestamped file in the snapshot directory when path is empty. It
// returns the path written.
func (o *Orchestrator) SaveSnapshot(ctx context.Context, path string) (string, error) {
	sum, err := o.Summary(ctx)
	if err != nil {
		return "", err
	}
	orders, err := o.Orders(ctx)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(o.opts.SnapshotDir, journal.DefaultSnapshotName(sum.Snapshot.Account.CapturedAt))
	}
	rec := journal.NewSnapshotFile(sum.Snapshot, orders, sum.Snapshot.Account.TotalPnL()-sum.DailyPnL)
	if err := journal.WriteSnapshotFile(path, rec); err != nil {
		return "", err
	}
	if err := o.journal.RecordSnapshot(sum.Snapshot); err != nil {
		o.log.WithError(err).Warn("journal snapshot")
	}
	return path, nil
}
