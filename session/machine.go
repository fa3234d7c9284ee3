// Package session tracks the health of the brokerage feed connection.
package session

import (
	"errors"
	"fmt"
	"time"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Degraded
	Fatal
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var ErrInvalidTransition = errors.New("invalid session transition")

// Transition records a state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s -> %s", t.From, t.To)
}

type Config struct {
	// MissThreshold is how many consecutive missed heartbeats demote
	// Connected to Degraded.
	MissThreshold int `json:"miss_threshold" yaml:"miss_threshold"`
	// RetryBudget is how many failed recovery heartbeats Degraded tolerates
	// before dropping to Disconnected.
	RetryBudget int     `json:"retry_budget" yaml:"retry_budget"`
	Backoff     Backoff `json:"backoff" yaml:"backoff"`
}

func DefaultConfig() Config {
	return Config{
		MissThreshold: 2,
		RetryBudget:   3,
		Backoff:       DefaultBackoff(),
	}
}

// Machine is the connection state machine:
//
//	Disconnected -> Connecting -> Connected -> Degraded -> Disconnected
//
// with Fatal reachable from anywhere. Only Connected permits snapshot pulls.
// A Machine is owned by one goroutine.
type Machine struct {
	cfg       Config
	state     State
	since     time.Time
	misses    int
	failures  int
	attempt   int
	nextRetry time.Time
	history   []Transition
}

func NewMachine(cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = def.MissThreshold
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = def.RetryBudget
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = def.Backoff
	}
	return &Machine{cfg: cfg, state: Disconnected}
}

func (m *Machine) State() State         { return m.state }
func (m *Machine) Since() time.Time     { return m.since }
func (m *Machine) NextRetry() time.Time { return m.nextRetry }
func (m *Machine) Attempt() int         { return m.attempt }

// CanPull reports whether snapshot pulls are allowed.
func (m *Machine) CanPull() bool { return m.state == Connected }

// History returns the transitions so far, oldest first.
func (m *Machine) History() []Transition {
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// RetryDue reports whether a Disconnected machine may try to connect.
func (m *Machine) RetryDue(now time.Time) bool {
	return m.state == Disconnected && !now.Before(m.nextRetry)
}

// Connect starts a connection attempt.
func (m *Machine) Connect(now time.Time) (Transition, error) {
	if m.state != Disconnected {
		return Transition{}, fmt.Errorf("%w: connect from %s", ErrInvalidTransition, m.state)
	}
	m.attempt++
	return m.move(Connecting, now, fmt.Sprintf("attempt %d", m.attempt)), nil
}

// HeartbeatOK records a successful heartbeat. Connecting and Degraded recover
// to Connected.
func (m *Machine) HeartbeatOK(now time.Time) (Transition, bool) {
	switch m.state {
	case Connected:
		m.misses = 0
		return Transition{}, false
	case Connecting, Degraded:
		m.misses, m.failures, m.attempt = 0, 0, 0
		m.nextRetry = time.Time{}
		return m.move(Connected, now, "heartbeat ok"), true
	}
	return Transition{}, false
}

// HeartbeatMissed records a failed heartbeat.
func (m *Machine) HeartbeatMissed(now time.Time, reason string) (Transition, bool) {
	switch m.state {
	case Connected:
		m.misses++
		if m.misses >= m.cfg.MissThreshold {
			return m.move(Degraded, now, fmt.Sprintf("%d missed heartbeats: %s", m.misses, reason)), true
		}
	case Degraded:
		m.failures++
		if m.failures >= m.cfg.RetryBudget {
			return m.drop(now, fmt.Sprintf("retry budget exhausted: %s", reason)), true
		}
	case Connecting:
		return m.drop(now, fmt.Sprintf("connect failed: %s", reason)), true
	}
	return Transition{}, false
}

// Demote moves Connected to Degraded, e.g. after repeated failed cycles.
func (m *Machine) Demote(now time.Time, reason string) (Transition, bool) {
	if m.state != Connected {
		return Transition{}, false
	}
	return m.move(Degraded, now, reason), true
}

// Disconnect is legal from every live state.
func (m *Machine) Disconnect(now time.Time, reason string) (Transition, bool) {
	if m.state == Disconnected || m.state == Fatal {
		return Transition{}, false
	}
	m.misses, m.failures = 0, 0
	m.nextRetry = now
	return m.move(Disconnected, now, reason), true
}

// Fail moves to the terminal Fatal state.
func (m *Machine) Fail(now time.Time, err error) (Transition, bool) {
	if m.state == Fatal {
		return Transition{}, false
	}
	reason := "fatal"
	if err != nil {
		reason = err.Error()
	}
	return m.move(Fatal, now, reason), true
}

func (m *Machine) drop(now time.Time, reason string) Transition {
	m.misses, m.failures = 0, 0
	if m.attempt == 0 {
		m.attempt = 1
	}
	m.nextRetry = now.Add(m.cfg.Backoff.Next(m.attempt))
	return m.move(Disconnected, now, reason)
}

func (m *Machine) move(to State, now time.Time, reason string) Transition {
	t := Transition{From: m.state, To: to, At: now, Reason: reason}
	m.state = to
	m.since = now
	m.history = append(m.history, t)
	if len(m.history) > 100 {
		m.history = m.history[len(m.history)-100:]
	}
	return t
}
