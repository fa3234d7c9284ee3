package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/market"
	"gopkg.in/yaml.v3"
)

// PnLSummary totals the P&L of a snapshot.
type PnLSummary struct {
	Unrealized float64 `json:"unrealized" yaml:"unrealized"`
	Realized   float64 `json:"realized" yaml:"realized"`
	Total      float64 `json:"total" yaml:"total"`
	Daily      float64 `json:"daily" yaml:"daily"`
}

// SnapshotFile is the on-disk form of a saved snapshot.
type SnapshotFile struct {
	ID         string                 `json:"id" yaml:"id"`
	Timestamp  time.Time              `json:"timestamp" yaml:"timestamp"`
	Account    market.AccountSnapshot `json:"account_summary" yaml:"account_summary"`
	Positions  []market.Position      `json:"positions" yaml:"positions"`
	OpenOrders []broker.OpenOrder     `json:"open_orders" yaml:"open_orders"`
	PnL        PnLSummary             `json:"pnl_summary" yaml:"pnl_summary"`
}

// NewSnapshotFile assembles the record. dayStartPnL is the realized plus
// unrealized P&L at the start of the trading day.
func NewSnapshotFile(s market.Snapshot, orders []broker.OpenOrder, dayStartPnL float64) SnapshotFile {
	a := s.Account
	return SnapshotFile{
		ID:         a.ID,
		Timestamp:  a.CapturedAt,
		Account:    a,
		Positions:  s.Positions,
		OpenOrders: orders,
		PnL: PnLSummary{
			Unrealized: a.UnrealizedPnL,
			Realized:   a.RealizedPnL,
			Total:      a.TotalPnL(),
			Daily:      a.TotalPnL() - dayStartPnL,
		},
	}
}

// DefaultSnapshotName is portfolio_snapshot_20060102_150405.json.
func DefaultSnapshotName(t time.Time) string {
	return "portfolio_snapshot_" + t.Format("20060102_150405") + ".json"
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// WriteSnapshotFile writes rec to path as JSON, or YAML for .yaml/.yml. The
// file is written beside the target and renamed into place so readers never
// see a partial file.
func WriteSnapshotFile(path string, rec SnapshotFile) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(rec)
	} else {
		data, err = json.MarshalIndent(rec, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// ReadSnapshotFile loads a file written by WriteSnapshotFile.
func ReadSnapshotFile(path string) (SnapshotFile, error) {
	var rec SnapshotFile
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &rec)
	} else {
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return rec, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return rec, nil
}
