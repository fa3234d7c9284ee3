package alert

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

type recorder struct {
	got []Alert
	err error
}

func (r *recorder) Notify(_ context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func concentration(at time.Time) Alert {
	return New(KindRisk, Warning, "AAPL", "concentration", "AAPL weight 20% exceeds 15%", at)
}

func TestDispatchOncePerCooldown(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec, nil, nil)

	// one breach persisting for 5 cycles, 30s apart, inside the 15m risk cooldown
	for i := 0; i < 5; i++ {
		now := t0.Add(time.Duration(i) * 30 * time.Second)
		d.Dispatch(context.Background(), []Alert{concentration(now)}, now)
	}

	require.Len(t, rec.got, 1)
	assert.Equal(t, "risk/AAPL/concentration", rec.got[0].Key.String())

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Count)
	assert.Equal(t, 1, entries[0].Sent)
	assert.Equal(t, t0, entries[0].FirstSeen)
	assert.Equal(t, t0, entries[0].LastSent)
}

func TestDispatchAfterCooldown(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec, Cooldowns{KindRisk: time.Minute}, nil)

	rep := d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0)
	assert.Len(t, rep.Sent, 1)

	rep = d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0.Add(59*time.Second))
	assert.Len(t, rep.Suppressed, 1)
	assert.Equal(t, 2, rep.Suppressed[0].Count)

	rep = d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0.Add(time.Minute))
	require.Len(t, rep.Sent, 1)
	assert.Equal(t, 3, rep.Sent[0].Count)
	assert.Equal(t, t0, rep.Sent[0].FirstSeen)
	assert.Len(t, rec.got, 2)

	// other kinds keep their defaults
	assert.Equal(t, time.Hour, d.Cooldown(KindSignal))
}

func TestResolvedConditionAlertsAgain(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := NewDispatcher(rec, nil, nil)

	d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0)

	// next cycle the breach is gone
	resolved := d.Reconcile(KindRisk, map[Key]bool{})
	assert.Equal(t, []Key{NewKey(KindRisk, "AAPL", "concentration")}, resolved)

	// and the cycle after it is back, inside what would have been the cooldown
	now := t0.Add(time.Minute)
	rep := d.Dispatch(context.Background(), []Alert{concentration(now)}, now)
	require.Len(t, rep.Sent, 1)
	assert.Equal(t, 1, rep.Sent[0].Count)
	assert.Len(t, rec.got, 2)
}

func TestReconcileKeepsActiveAndOtherKinds(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, nil, nil)
	keep := NewKey(KindRisk, "", "margin_utilization")
	d.Dispatch(context.Background(), []Alert{
		New(KindRisk, Critical, "", "margin_utilization", "margin", t0),
		concentration(t0),
		New(KindConnectivity, Warning, "", "degraded", "degraded", t0),
	}, t0)

	resolved := d.Reconcile(KindRisk, map[Key]bool{keep: true})
	assert.Len(t, resolved, 1)
	assert.Len(t, d.Entries(), 2)
	assert.False(t, d.Resolve(NewKey(KindRisk, "MSFT", "concentration")))
}

func TestNotifierFailureIsLoggedNotRetried(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	rec := &recorder{err: errors.New("webhook down")}
	d := NewDispatcher(rec, nil, logrus.NewEntry(logger))

	rep := d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0)
	assert.Len(t, rep.Sent, 1)

	rep = d.Dispatch(context.Background(), []Alert{concentration(t0)}, t0.Add(time.Second))
	assert.Len(t, rep.Suppressed, 1)
	assert.Len(t, rec.got, 1)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "alerts", hook.LastEntry().Data["component"])
}

func TestAlertPayload(t *testing.T) {
	t.Parallel()

	a := New(KindConnectivity, Critical, "", "fatal", "auth rejected", t0)
	b, err := json.Marshal(a)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "connectivity", m["kind"])
	assert.Equal(t, "critical", m["severity"])
	assert.Equal(t, "connectivity/global/fatal", m["dedup_key"])
	assert.Equal(t, "auth rejected", m["message"])
	assert.Equal(t, "2025-06-02T14:30:00Z", m["timestamp"])
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	s, err := ParseSeverity("WARN")
	require.NoError(t, err)
	assert.Equal(t, Warning, s)
	_, err = ParseSeverity("loud")
	assert.Error(t, err)
}
