package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func noJitter() Config {
	return Config{MissThreshold: 2, RetryBudget: 2, Backoff: Backoff{Min: 10 * time.Second, Max: time.Minute, Factor: 2}}
}

func connected(t *testing.T, m *Machine) {
	t.Helper()
	_, err := m.Connect(t0)
	require.NoError(t, err)
	_, ok := m.HeartbeatOK(t0)
	require.True(t, ok)
	require.Equal(t, Connected, m.State())
}

func TestHappyPath(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	assert.Equal(t, Disconnected, m.State())
	assert.False(t, m.CanPull())
	assert.True(t, m.RetryDue(t0))

	tr, err := m.Connect(t0)
	require.NoError(t, err)
	assert.Equal(t, Transition{From: Disconnected, To: Connecting, At: t0, Reason: "attempt 1"}, tr)

	tr, ok := m.HeartbeatOK(t0.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, "connecting -> connected", tr.String())
	assert.True(t, m.CanPull())

	_, ok = m.HeartbeatOK(t0.Add(2 * time.Second))
	assert.False(t, ok, "steady state is not a transition")
	assert.Len(t, m.History(), 2)
}

func TestConnectOnlyFromDisconnected(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	connected(t, m)
	_, err := m.Connect(t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMissedHeartbeatsDegradeThenDisconnect(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	connected(t, m)

	_, ok := m.HeartbeatMissed(t0.Add(30*time.Second), "timeout")
	assert.False(t, ok)
	assert.Equal(t, Connected, m.State())

	tr, ok := m.HeartbeatMissed(t0.Add(60*time.Second), "timeout")
	require.True(t, ok)
	assert.Equal(t, Degraded, tr.To)
	assert.False(t, m.CanPull())

	_, ok = m.HeartbeatMissed(t0.Add(90*time.Second), "timeout")
	assert.False(t, ok)
	now := t0.Add(120 * time.Second)
	tr, ok = m.HeartbeatMissed(now, "timeout")
	require.True(t, ok)
	assert.Equal(t, Disconnected, tr.To)
	assert.Equal(t, now.Add(10*time.Second), m.NextRetry())
	assert.False(t, m.RetryDue(now))
	assert.True(t, m.RetryDue(now.Add(10*time.Second)))
}

func TestDegradedRecovers(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	connected(t, m)
	_, ok := m.Demote(t0, "3 failed cycles")
	require.True(t, ok)
	assert.Equal(t, Degraded, m.State())

	_, ok = m.Demote(t0, "again")
	assert.False(t, ok)

	tr, ok := m.HeartbeatOK(t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, Degraded, tr.From)
	assert.Equal(t, Connected, m.State())
	assert.Zero(t, m.Attempt())
}

func TestFailedConnectBacksOff(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	now := t0
	for attempt, want := range []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, time.Minute} {
		_, err := m.Connect(now)
		require.NoError(t, err, "attempt %d", attempt+1)
		tr, ok := m.HeartbeatMissed(now, "refused")
		require.True(t, ok)
		assert.Equal(t, Disconnected, tr.To)
		assert.Equal(t, now.Add(want), m.NextRetry())
		now = m.NextRetry()
	}
}

func TestDisconnectAndFatal(t *testing.T) {
	t.Parallel()

	m := NewMachine(noJitter())
	_, ok := m.Disconnect(t0, "operator")
	assert.False(t, ok)

	connected(t, m)
	_, ok = m.Disconnect(t0, "operator")
	assert.True(t, ok)
	assert.True(t, m.RetryDue(t0))

	tr, ok := m.Fail(t0, errors.New("auth rejected"))
	require.True(t, ok)
	assert.Equal(t, "auth rejected", tr.Reason)
	assert.Equal(t, Fatal, m.State())

	_, ok = m.Disconnect(t0, "operator")
	assert.False(t, ok)
	_, err := m.Connect(t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, ok = m.HeartbeatOK(t0)
	assert.False(t, ok)
}

func TestBackoffNext(t *testing.T) {
	t.Parallel()

	b := Backoff{Min: time.Second, Max: 5 * time.Second, Factor: 2}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 5*time.Second, b.Next(10))
	assert.Equal(t, 5*time.Second, b.Next(100_000), "huge attempts stay at Max")
	assert.Equal(t, time.Second, Backoff{}.Next(1))
	assert.Equal(t, 4*time.Second, Backoff{Max: time.Minute}.Next(3))

	j := Backoff{Min: time.Second, Max: time.Second, Factor: 2, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := j.Next(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "state(9)", State(9).String())
}
