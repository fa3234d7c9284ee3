package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/internal/id"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/router"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// RecordSnapshot stores the account row and its positions in one
// transaction. Snapshots without an ID get one minted from the capture time.
func (j *SQLite) RecordSnapshot(s market.Snapshot) error {
	a := s.Account
	if a.ID == "" {
		a.ID = id.At(a.CapturedAt)
	}

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO snapshots
		(snapshot_id, captured_at, net_liquidation, available_cash, unrealized_pnl, realized_pnl,
		 margin_used, margin_available, margin_utilization)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CapturedAt.UTC(), a.NetLiquidation, a.AvailableCash, a.UnrealizedPnL, a.RealizedPnL,
		a.MarginUsed, a.MarginAvailable, a.MarginUtilization,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, p := range s.Positions {
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO positions
			(snapshot_id, instrument, quantity, avg_cost, market_price, market_value, unrealized_pnl, weight)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, p.Instrument, p.Quantity, p.AvgCost, p.MarketPrice, p.MarketValue, p.UnrealizedPnL, p.Weight,
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", p.Instrument, err)
		}
	}
	return tx.Commit()
}

func (j *SQLite) RecordOrder(r router.Result) error {
	o := r.Order
	clientID := o.ClientID
	if clientID == "" {
		clientID = id.At(r.At)
	}
	var orderID string
	if r.Fill != nil {
		orderID = r.Fill.OrderID
	}
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO orders
		(client_id, time, instrument, side, quantity, ref_price, strategy, mode, status, reason, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		clientID, r.At.UTC(), o.Instrument, string(o.Side), o.Quantity.String(), o.RefPrice,
		o.Strategy, r.Mode, r.Status.String(), r.Reason, orderID,
	)
	return err
}

func (j *SQLite) RecordAlert(a alert.Alert) error {
	_, err := j.db.Exec(`
		INSERT INTO alerts (time, dedup_key, kind, severity, message, count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.At.UTC(), a.Key.String(), string(a.Kind), a.Severity.String(), a.Message, a.Count,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
