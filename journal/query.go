package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
)

// LatestSnapshot loads the most recent snapshot and its positions.
func (j *SQLite) LatestSnapshot() (market.Snapshot, error) {
	var a market.AccountSnapshot
	row := j.db.QueryRow(`
		SELECT snapshot_id, captured_at, net_liquidation, available_cash, unrealized_pnl, realized_pnl,
		       margin_used, margin_available, margin_utilization
		FROM snapshots
		ORDER BY captured_at DESC
		LIMIT 1`)
	err := row.Scan(&a.ID, &a.CapturedAt, &a.NetLiquidation, &a.AvailableCash, &a.UnrealizedPnL,
		&a.RealizedPnL, &a.MarginUsed, &a.MarginAvailable, &a.MarginUtilization)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return market.Snapshot{}, fmt.Errorf("latest snapshot: %w", ErrNotFound)
		}
		return market.Snapshot{}, err
	}

	rows, err := j.db.Query(`
		SELECT instrument, quantity, avg_cost, market_price, market_value, unrealized_pnl, weight
		FROM positions
		WHERE snapshot_id = ?
		ORDER BY instrument ASC`, a.ID)
	if err != nil {
		return market.Snapshot{}, err
	}
	defer rows.Close()

	snap := market.Snapshot{Account: a}
	for rows.Next() {
		var p market.Position
		if err := rows.Scan(&p.Instrument, &p.Quantity, &p.AvgCost, &p.MarketPrice,
			&p.MarketValue, &p.UnrealizedPnL, &p.Weight); err != nil {
			return market.Snapshot{}, err
		}
		snap.Positions = append(snap.Positions, p)
	}
	return snap, rows.Err()
}

// DailyCloses returns the last net liquidation value of each calendar day in
// loc, for snapshots captured at or after since, oldest first.
func (j *SQLite) DailyCloses(since time.Time, loc *time.Location) ([]risk.DayClose, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows, err := j.db.Query(`
		SELECT captured_at, net_liquidation
		FROM snapshots
		WHERE captured_at >= ?
		ORDER BY captured_at ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.DayClose
	for rows.Next() {
		var (
			at  time.Time
			nlv float64
		)
		if err := rows.Scan(&at, &nlv); err != nil {
			return nil, err
		}
		day := at.In(loc).Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Day == day {
			out[n-1].Value = nlv
			continue
		}
		out = append(out, risk.DayClose{Day: day, Value: nlv})
	}
	return out, rows.Err()
}

// ListOrders returns the most recent order decisions, newest first.
func (j *SQLite) ListOrders(limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(`
		SELECT client_id, time, instrument, side, quantity, ref_price, strategy, mode, status, reason, order_id
		FROM orders
		ORDER BY time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ClientID, &r.Time, &r.Instrument, &r.Side, &r.Quantity, &r.RefPrice,
			&r.Strategy, &r.Mode, &r.Status, &r.Reason, &r.OrderID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListAlerts returns the most recent alerts, newest first.
func (j *SQLite) ListAlerts(limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(`
		SELECT time, dedup_key, kind, severity, message, count
		FROM alerts
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var r AlertRecord
		if err := rows.Scan(&r.Time, &r.Key, &r.Kind, &r.Severity, &r.Message, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
