// Package alert deduplicates and rate-limits alerts before handing them to a
// notifier.
package alert

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindRisk         Kind = "risk"
	KindSignal       Kind = "signal"
	KindConnectivity Kind = "connectivity"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "info"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "critical", "crit":
		return Critical, nil
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

// Global is the key scope for conditions not tied to an instrument.
const Global = "global"

// Key identifies a condition: the alert kind, the instrument it concerns (or
// Global), and the rule or strategy that raised it.
type Key struct {
	Kind  Kind   `json:"kind"`
	Scope string `json:"scope"`
	Rule  string `json:"rule"`
}

func NewKey(kind Kind, instrument, rule string) Key {
	if instrument == "" {
		instrument = Global
	}
	return Key{Kind: kind, Scope: instrument, Rule: rule}
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Scope + "/" + k.Rule
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Alert is a notification candidate. FirstSeen, LastSent and Count are filled
// in by the Dispatcher.
type Alert struct {
	Key        Key       `json:"dedup_key"`
	Kind       Kind      `json:"kind"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Instrument string    `json:"instrument,omitempty"`
	At         time.Time `json:"timestamp"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSent   time.Time `json:"last_sent"`
	Count      int       `json:"count"`
}

// New builds an alert with its dedup key derived from kind, instrument and
// rule.
func New(kind Kind, sev Severity, instrument, rule, msg string, at time.Time) Alert {
	return Alert{
		Key:        NewKey(kind, instrument, rule),
		Kind:       kind,
		Severity:   sev,
		Message:    msg,
		Instrument: instrument,
		At:         at,
	}
}

// Notifier delivers alerts. Implementations must not block the caller for
// long; delivery retries are their own concern.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }
