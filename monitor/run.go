package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/portmon/session"
	"github.com/sirupsen/logrus"
)

// Run drives cycles on the configured interval until ctx is done or the
// session turns fatal. Cycles never overlap. Cancellation is only observed
// between cycles: the in-flight cycle finishes on its own per-call timeouts.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.WithFields(logrus.Fields{
		"interval":   o.opts.Interval.String(),
		"endpoint":   o.opts.Endpoint.String(),
		"auto_trade": o.opts.AutoTrade,
	}).Info("monitor starting")

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			break
		}

		err := o.RunCycle(context.WithoutCancel(ctx))
		if o.Session() == session.Fatal {
			o.shutdown("fatal")
			return err
		}
		if err != nil && !errors.Is(err, ErrSkipped) {
			o.log.WithError(err).Debug("cycle ended with error")
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	o.shutdown("shutdown")
	return nil
}

func (o *Orchestrator) shutdown(reason string) {
	now := o.clock()
	o.mu.Lock()
	o.session.Disconnect(now, reason)
	o.mu.Unlock()
	_ = o.feed.Disconnect()
	o.log.WithField("reason", reason).Info("monitor stopped")
}
