package notify

import (
	"context"

	"github.com/rustyeddy/portmon/alert"
	"github.com/sirupsen/logrus"
)

// LogSink writes alerts to the log at a level matching their severity.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	return &LogSink{log: log.WithField("component", "notify")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, a alert.Alert) error {
	e := s.log.WithFields(logrus.Fields{
		"kind":       string(a.Kind),
		"severity":   a.Severity.String(),
		"dedup_key":  a.Key.String(),
		"instrument": a.Instrument,
		"count":      a.Count,
	})
	switch a.Severity {
	case alert.Critical:
		e.Error(a.Message)
	case alert.Warning:
		e.Warn(a.Message)
	default:
		e.Info(a.Message)
	}
	return nil
}
