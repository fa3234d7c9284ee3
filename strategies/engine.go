package strategies

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
	"github.com/sirupsen/logrus"
)

// Target is one strategy applied to one instrument.
type Target struct {
	Strategy   string `json:"strategy"`
	Instrument string `json:"instrument"`
}

func (t Target) String() string { return t.Strategy + "/" + t.Instrument }

// Requirement is a target plus the indicator parameters it needs.
type Requirement struct {
	Target
	Params indicators.Params
}

// Inputs maps each target to the indicator set computed for it this cycle.
type Inputs map[Target]indicators.Set

// EvaluationError reports a strategy that could not be evaluated for one
// instrument. The cycle carries on without it.
type EvaluationError struct {
	Target Target
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Target, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Result is one cycle's strategy output. Signals holds only buy and sell
// signals, at most one per instrument; holds are counted. Unchanged counts
// targets whose latest bar was already evaluated in an earlier cycle.
type Result struct {
	Signals      []Signal
	Holds        int
	Filtered     int
	Unchanged    int
	Superseded   int
	Undetermined []Target
	Errors       []error
}

type entry struct {
	cfg   Config
	strat Strategy
}

// Engine evaluates every enabled strategy against every instrument it is
// configured for.
type Engine struct {
	entries []entry
	log     *logrus.Entry

	mu   sync.Mutex
	last map[Target]indicators.Set
}

// NewEngine builds strategies for every enabled config. Disabled configs are
// skipped.
func NewEngine(cfgs []Config, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		log:  log.WithField("component", "strategy"),
		last: make(map[Target]indicators.Set),
	}

	seen := map[string]bool{}
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			e.log.WithField("strategy", cfg.Name).Debug("strategy disabled, skipping")
			continue
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("duplicate strategy name %q", cfg.Name)
		}
		seen[cfg.Name] = true

		s, err := New(cfg)
		if err != nil {
			return nil, err
		}
		cfg.Instruments = uniq(cfg.Instruments)
		e.entries = append(e.entries, entry{cfg: cfg, strat: s})
	}
	return e, nil
}

// Requirements lists every (strategy, instrument) pair with the indicator
// parameters its strategy needs.
func (e *Engine) Requirements() []Requirement {
	var out []Requirement
	for _, en := range e.entries {
		for _, instr := range en.cfg.Instruments {
			out = append(out, Requirement{
				Target: Target{Strategy: en.cfg.Name, Instrument: instr},
				Params: en.strat.Params(),
			})
		}
	}
	return out
}

// Instruments is the sorted union of instruments across enabled strategies.
func (e *Engine) Instruments() []string {
	var all []string
	for _, en := range e.entries {
		all = append(all, en.cfg.Instruments...)
	}
	out := uniq(all)
	sort.Strings(out)
	return out
}

// History is the longest window any enabled strategy needs.
func (e *Engine) History() int {
	n := 0
	for _, en := range e.entries {
		if r := en.strat.Params().Required(); r > n {
			n = r
		}
	}
	return n
}

// Evaluate runs every target once. A target with no input set, or whose
// indicators are not ready, is reported undetermined and produces nothing.
//
// The engine remembers the last set it evaluated per target. A set whose bar
// is no newer than that one is skipped, and the previous cycle's averages
// become PrevFast and PrevSlow, so a crossover is a sign change between two
// cycles. When several strategies signal the same instrument only the
// strongest signal is kept.
func (e *Engine) Evaluate(in Inputs, snap market.Snapshot, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res Result
	for _, en := range e.entries {
		for _, instr := range en.cfg.Instruments {
			target := Target{Strategy: en.cfg.Name, Instrument: instr}
			log := e.log.WithFields(logrus.Fields{"strategy": target.Strategy, "instrument": instr})

			set, ok := in[target]
			if !ok {
				res.Undetermined = append(res.Undetermined, target)
				log.Debug("no indicator set")
				continue
			}

			prev, seen := e.last[target]
			if seen && !set.At.IsZero() && !set.At.After(prev.At) {
				res.Unchanged++
				log.WithField("at", set.At).Debug("no new bar since last cycle")
				continue
			}
			e.last[target] = set
			if seen && prev.Fast.Ready && prev.Slow.Ready {
				set.PrevFast, set.PrevSlow = prev.Fast, prev.Slow
			}

			var pos *market.Position
			if p, ok := snap.Position(instr); ok {
				pos = &p
			}

			sig, err := en.strat.Evaluate(set, pos)
			if err != nil {
				if errors.Is(err, ErrUndetermined) {
					res.Undetermined = append(res.Undetermined, target)
					log.WithField("points", set.Points).Debug("indicators undetermined")
					continue
				}
				res.Errors = append(res.Errors, &EvaluationError{Target: target, Err: err})
				log.WithError(err).Warn("strategy evaluation failed")
				continue
			}

			if !sig.Actionable() {
				res.Holds++
				continue
			}
			if sig.Strength < en.cfg.Params.MinStrength {
				res.Filtered++
				log.WithField("strength", sig.Strength).Debug("signal below min strength")
				continue
			}
			if !now.IsZero() {
				sig.At = now
			}
			res.Signals = append(res.Signals, sig)
		}
	}

	res.Signals, res.Superseded = strongest(res.Signals)
	for _, sig := range res.Signals {
		e.log.WithFields(logrus.Fields{
			"strategy":   sig.Strategy,
			"instrument": sig.Instrument,
			"direction":  sig.Direction.String(),
			"strength":   sig.Strength,
		}).Info(sig.Reason)
	}
	return res
}

// strongest keeps the highest-strength signal per instrument. Ties go to the
// earlier signal. Order of first appearance is preserved.
func strongest(sigs []Signal) ([]Signal, int) {
	if len(sigs) == 0 {
		return sigs, 0
	}
	idx := make(map[string]int, len(sigs))
	out := make([]Signal, 0, len(sigs))
	for _, s := range sigs {
		i, ok := idx[s.Instrument]
		if !ok {
			idx[s.Instrument] = len(out)
			out = append(out, s)
			continue
		}
		if s.Strength > out[i].Strength {
			out[i] = s
		}
	}
	return out, len(sigs) - len(out)
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
