package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("notification queue full")
	ErrQueueClosed = errors.New("notification queue closed")
)

type QueueConfig struct {
	Capacity    int
	Attempts    int           // per sink, including the first
	RetryDelay  time.Duration // doubled after each failed attempt
	SendTimeout time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity:    64,
		Attempts:    3,
		RetryDelay:  2 * time.Second,
		SendTimeout: 10 * time.Second,
	}
}

// Queue is a bounded, non-blocking hand-off between the monitor loop and the
// sinks. Notify never waits on delivery.
type Queue struct {
	cfg   QueueConfig
	sinks []Sink
	log   *logrus.Entry

	// chMu orders sends on ch against its close.
	chMu   sync.Mutex
	ch     chan alert.Alert
	closed bool

	mu        sync.Mutex
	delivered int
	failed    int
}

var _ alert.Notifier = (*Queue)(nil)

func NewQueue(cfg QueueConfig, log *logrus.Entry, sinks ...Sink) *Queue {
	def := DefaultQueueConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Queue{
		cfg:   cfg,
		sinks: sinks,
		ch:    make(chan alert.Alert, cfg.Capacity),
		log:   log.WithField("component", "notify"),
	}
}

// Notify enqueues a without blocking. It is safe to call concurrently with
// Close.
func (q *Queue) Notify(_ context.Context, a alert.Alert) error {
	q.chMu.Lock()
	defer q.chMu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- a:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue accepting alerts. Run drains what is buffered.
func (q *Queue) Close() {
	q.chMu.Lock()
	defer q.chMu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run delivers alerts until ctx is done or the queue is closed and drained.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-q.ch:
			if !ok {
				return
			}
			q.deliver(ctx, a)
		}
	}
}

// Stats reports delivered and failed sink sends.
func (q *Queue) Stats() (delivered, failed int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delivered, q.failed
}

func (q *Queue) deliver(ctx context.Context, a alert.Alert) {
	for _, s := range q.sinks {
		err := q.send(ctx, s, a)

		q.mu.Lock()
		if err != nil {
			q.failed++
		} else {
			q.delivered++
		}
		q.mu.Unlock()

		if err != nil {
			q.log.WithError(err).WithFields(logrus.Fields{
				"sink": s.Name(),
				"key":  a.Key.String(),
			}).Error("notification delivery failed")
		}
	}
}

func (q *Queue) send(ctx context.Context, s Sink, a alert.Alert) error {
	delay := q.cfg.RetryDelay
	var err error
	for attempt := 1; attempt <= q.cfg.Attempts; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, q.cfg.SendTimeout)
		err = s.Send(sctx, a)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == q.cfg.Attempts {
			break
		}
		q.log.WithError(err).WithFields(logrus.Fields{"sink": s.Name(), "attempt": attempt}).Debug("retrying notification")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
