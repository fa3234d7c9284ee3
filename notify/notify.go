// Package notify delivers alerts to humans. The Queue accepts alerts without
// blocking and fans them out to sinks from its own goroutine.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rustyeddy/portmon/alert"
)

// Sink delivers one alert to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, a alert.Alert) error
}

// Payload is the wire form of an alert.
type Payload struct {
	Kind       string    `json:"kind"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	DedupKey   string    `json:"dedup_key"`
	Instrument string    `json:"instrument,omitempty"`
	Count      int       `json:"count"`
	Timestamp  time.Time `json:"timestamp"`
}

func PayloadOf(a alert.Alert) Payload {
	return Payload{
		Kind:       string(a.Kind),
		Severity:   a.Severity.String(),
		Message:    a.Message,
		DedupKey:   a.Key.String(),
		Instrument: a.Instrument,
		Count:      a.Count,
		Timestamp:  a.At,
	}
}

func (p Payload) JSON() ([]byte, error) {
	return json.Marshal(p)
}
