package session

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays that grow by Factor from Min up to Max.
type Backoff struct {
	Min    time.Duration `json:"min" yaml:"min"`
	Max    time.Duration `json:"max" yaml:"max"`
	Factor float64       `json:"factor" yaml:"factor"`
	Jitter float64       `json:"jitter" yaml:"jitter"`
}

func DefaultBackoff() Backoff {
	return Backoff{
		Min:    5 * time.Second,
		Max:    5 * time.Minute,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before the given 1-based attempt. The base delay is
// Min*Factor^(attempt-1) capped at Max; Jitter then spreads it uniformly over
// plus or minus that fraction of itself.
func (b Backoff) Next(attempt int) time.Duration {
	b = b.sanitized()

	steps := math.Max(float64(attempt-1), 0)
	d := float64(b.Min) * math.Pow(b.Factor, steps)
	if d > float64(b.Max) || math.IsInf(d, 1) || math.IsNaN(d) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// sanitized fills unusable fields: Min at least a second, Max at least Min,
// Factor above one and Jitter at most one.
func (b Backoff) sanitized() Backoff {
	if b.Min <= 0 {
		b.Min = time.Second
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Factor <= 1 {
		b.Factor = 2
	}
	b.Jitter = math.Min(math.Max(b.Jitter, 0), 1)
	return b
}
