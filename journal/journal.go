// Package journal persists what the monitor saw and did.
package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/router"
)

var ErrNotFound = errors.New("not found")

// Journal records snapshots, order decisions, and dispatched alerts.
type Journal interface {
	RecordSnapshot(s market.Snapshot) error
	RecordOrder(r router.Result) error
	RecordAlert(a alert.Alert) error
	Close() error
}

// OrderRecord is a stored gate decision.
type OrderRecord struct {
	ClientID   string
	Instrument string
	Side       string
	Quantity   string
	RefPrice   float64
	Strategy   string
	Mode       string
	Status     string
	Reason     string
	OrderID    string
	Time       time.Time
}

// AlertRecord is a stored alert.
type AlertRecord struct {
	Key      string
	Kind     string
	Severity string
	Message  string
	Count    int
	Time     time.Time
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSnapshot(market.Snapshot) error { return nil }
func (Nop) RecordOrder(router.Result) error      { return nil }
func (Nop) RecordAlert(alert.Alert) error        { return nil }
func (Nop) Close() error                         { return nil }
