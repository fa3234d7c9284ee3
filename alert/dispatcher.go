package alert

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Cooldowns per alert kind.
type Cooldowns map[Kind]time.Duration

func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		KindRisk:         15 * time.Minute,
		KindSignal:       time.Hour,
		KindConnectivity: 5 * time.Minute,
	}
}

// Entry is the dedup state of one active condition.
type Entry struct {
	Key       Key       `json:"key"`
	FirstSeen time.Time `json:"first_seen"`
	LastSent  time.Time `json:"last_sent"`
	Count     int       `json:"count"`
	Sent      int       `json:"sent"`
}

// Report is the outcome of one Dispatch call.
type Report struct {
	Sent       []Alert
	Suppressed []Alert
}

// Dispatcher forwards an alert only when its key has no active entry or the
// kind's cooldown has elapsed since the key was last sent. It is owned by a
// single goroutine and is not safe for concurrent use.
type Dispatcher struct {
	cooldowns Cooldowns
	notifier  Notifier
	entries   map[Key]*Entry
	log       *logrus.Entry
}

func NewDispatcher(n Notifier, cooldowns Cooldowns, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cd := DefaultCooldowns()
	for k, v := range cooldowns {
		cd[k] = v
	}
	return &Dispatcher{
		cooldowns: cd,
		notifier:  n,
		entries:   make(map[Key]*Entry),
		log:       log.WithField("component", "alerts"),
	}
}

// Dispatch applies dedup and cooldown to each candidate and hands the ones
// that pass to the notifier. A notifier error is logged; the alert still
// counts as sent and is not retried here.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []Alert, now time.Time) Report {
	var rep Report
	for _, a := range candidates {
		if a.At.IsZero() {
			a.At = now
		}
		e, ok := d.entries[a.Key]
		if !ok {
			e = &Entry{Key: a.Key, FirstSeen: now}
			d.entries[a.Key] = e
		}
		e.Count++
		a.FirstSeen = e.FirstSeen
		a.Count = e.Count

		if e.Sent > 0 && now.Sub(e.LastSent) < d.cooldowns[a.Kind] {
			a.LastSent = e.LastSent
			rep.Suppressed = append(rep.Suppressed, a)
			d.log.WithFields(logrus.Fields{"key": a.Key.String(), "count": e.Count}).Debug("alert suppressed")
			continue
		}

		e.LastSent = now
		e.Sent++
		a.LastSent = now
		rep.Sent = append(rep.Sent, a)

		if d.notifier == nil {
			continue
		}
		if err := d.notifier.Notify(ctx, a); err != nil {
			d.log.WithError(err).WithField("key", a.Key.String()).Warn("alert hand-off failed")
		}
	}
	return rep
}

// Resolve clears the entry for key so the next occurrence alerts at once.
func (d *Dispatcher) Resolve(key Key) bool {
	if _, ok := d.entries[key]; !ok {
		return false
	}
	delete(d.entries, key)
	d.log.WithField("key", key.String()).Debug("alert resolved")
	return true
}

// Reconcile resolves every entry of kind whose key is not in active.
func (d *Dispatcher) Reconcile(kind Kind, active map[Key]bool) []Key {
	var resolved []Key
	for k := range d.entries {
		if k.Kind == kind && !active[k] {
			resolved = append(resolved, k)
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].String() < resolved[j].String() })
	for _, k := range resolved {
		d.Resolve(k)
	}
	return resolved
}

// Entries returns a copy of the active entries ordered by key.
func (d *Dispatcher) Entries() []Entry {
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

func (d *Dispatcher) Cooldown(k Kind) time.Duration { return d.cooldowns[k] }
