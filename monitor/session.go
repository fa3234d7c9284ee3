package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/session"
	"github.com/sirupsen/logrus"
)

// call runs fn with the per-call timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()
	return fn(cctx)
}

// upkeep keeps the session alive: reconnect when a retry is due, otherwise
// heartbeat. It returns an error only for fatal failures.
func (o *Orchestrator) upkeep(ctx context.Context, now time.Time) error {
	switch o.Session() {
	case session.Fatal:
		return o.fatal
	case session.Disconnected:
		o.mu.RLock()
		due := o.session.RetryDue(now)
		o.mu.RUnlock()
		if !due {
			return nil
		}
		return o.connect(ctx, now)
	}

	err := o.call(ctx, o.feed.Heartbeat)
	if err == nil {
		o.transit(ctx, func() (session.Transition, bool) { return o.session.HeartbeatOK(now) })
		return nil
	}
	if broker.IsFatal(err) {
		return o.fail(ctx, now, err)
	}
	o.log.WithError(err).WithField("state", o.Session().String()).Warn("heartbeat missed")
	o.transit(ctx, func() (session.Transition, bool) { return o.session.HeartbeatMissed(now, err.Error()) })
	return nil
}

// connect makes one connection attempt.
func (o *Orchestrator) connect(ctx context.Context, now time.Time) error {
	var cerr error
	o.transit(ctx, func() (session.Transition, bool) {
		t, err := o.session.Connect(now)
		cerr = err
		return t, err == nil
	})
	if cerr != nil {
		return nil
	}

	err := o.call(ctx, func(ctx context.Context) error { return o.feed.Connect(ctx, o.opts.Endpoint) })
	if err != nil {
		if broker.IsFatal(err) {
			return o.fail(ctx, now, err)
		}
		o.log.WithError(err).WithField("endpoint", o.opts.Endpoint.String()).Warn("connect failed")
		o.transit(ctx, func() (session.Transition, bool) { return o.session.HeartbeatMissed(now, err.Error()) })
		return nil
	}
	o.transit(ctx, func() (session.Transition, bool) { return o.session.HeartbeatOK(now) })
	return nil
}

// fail moves the session to Fatal and remembers why.
func (o *Orchestrator) fail(ctx context.Context, now time.Time, err error) error {
	o.fatal = err
	o.transit(ctx, func() (session.Transition, bool) { return o.session.Fail(now, err) })
	return err
}

// transit applies one state machine step and reacts to any transition it
// produced.
func (o *Orchestrator) transit(ctx context.Context, step func() (session.Transition, bool)) {
	o.mu.Lock()
	t, ok := step()
	o.mu.Unlock()
	if !ok {
		return
	}

	o.log.WithFields(logrus.Fields{
		"from":   t.From.String(),
		"to":     t.To.String(),
		"reason": t.Reason,
	}).Info("session transition")

	switch t.To {
	case session.Disconnected:
		if t.From != session.Connecting {
			_ = o.feed.Disconnect()
		}
	case session.Connected:
		if o.dispatcher != nil {
			o.dispatcher.Reconcile(alert.KindConnectivity, nil)
		}
		return
	}

	if a, ok := connectivityAlert(t); ok {
		o.dispatch(ctx, []alert.Alert{a}, t.At)
	}
}

func connectivityAlert(t session.Transition) (alert.Alert, bool) {
	var (
		sev  alert.Severity
		rule = "session_" + t.To.String()
	)
	switch t.To {
	case session.Degraded:
		sev = alert.Warning
	case session.Disconnected:
		sev = alert.Critical
		if t.From == session.Connecting {
			sev, rule = alert.Warning, "connect_failed"
		}
	case session.Fatal:
		sev = alert.Critical
	default:
		return alert.Alert{}, false
	}
	msg := fmt.Sprintf("session %s -> %s: %s", t.From, t.To, t.Reason)
	return alert.New(alert.KindConnectivity, sev, "", rule, msg, t.At), true
}
