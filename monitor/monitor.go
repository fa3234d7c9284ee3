// Package monitor runs the polling loop: keep the session alive, pull a
// consistent cut of account and prices, then derive indicators, risk,
// signals, alerts, and orders from it.
package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/journal"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/router"
	"github.com/rustyeddy/portmon/session"
	"github.com/rustyeddy/portmon/strategies"
	"github.com/sirupsen/logrus"
)

var (
	// ErrStaleData means the feed answered with a capture older than the
	// staleness bound. The cycle is skipped.
	ErrStaleData = errors.New("stale market data")
	// ErrSkipped means the session could not serve pulls this cycle.
	ErrSkipped = errors.New("cycle skipped")
)

// Publisher receives a copy of the view after every cycle. It must not block.
type Publisher interface {
	Publish(v any)
}

// dailyCloser is implemented by journals that can seed the return history.
type dailyCloser interface {
	DailyCloses(since time.Time, loc *time.Location) ([]risk.DayClose, error)
}

type Options struct {
	Endpoint      broker.Endpoint
	Interval      time.Duration
	CallTimeout   time.Duration
	HistoryWindow int
	Retention     int
	// MaxFailures consecutive failed cycles demote the session.
	MaxFailures int
	// StaleAfter is the staleness bound in intervals.
	StaleAfter    int
	AutoTrade     bool
	SnapshotEvery int
	SnapshotDir   string
	Location      *time.Location
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 100
	}
	if o.Retention < o.HistoryWindow {
		o.Retention = market.DefaultRetention
		if o.Retention < o.HistoryWindow {
			o.Retention = o.HistoryWindow
		}
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 3
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 3
	}
	if o.SnapshotDir == "" {
		o.SnapshotDir = "."
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// Deps are the collaborators an Orchestrator drives. Feed, Session, Engine,
// Scorer, Dispatcher and Router are required.
type Deps struct {
	Feed       broker.Feed
	Session    *session.Machine
	Engine     *strategies.Engine
	Scorer     *risk.Scorer
	Dispatcher *alert.Dispatcher
	Router     *router.Router
	Journal    journal.Journal
	Publisher  Publisher
	Log        *logrus.Entry
	Clock      func() time.Time
}

// State is everything the loop derives. Only the loop goroutine mutates it.
type State struct {
	Cycle       int
	HasSnapshot bool
	Snapshot    market.Snapshot
	Series      map[string]*market.PriceSeries
	Indicators  strategies.Inputs
	Assessment  risk.Assessment
	Signals     []strategies.Signal
	Strategy    strategies.Result
	Orders      []router.Result
	Failures    int
	LastError   string
	LastCycle   time.Time
	DayStartPnL float64
	day         string
}

// Orchestrator owns the monitoring state and the single loop that updates it.
type Orchestrator struct {
	opts Options

	feed       broker.Feed
	session    *session.Machine
	engine     *strategies.Engine
	scorer     *risk.Scorer
	dispatcher *alert.Dispatcher
	router     *router.Router
	journal    journal.Journal
	publisher  Publisher
	log        *logrus.Entry
	clock      func() time.Time

	cycleMu sync.Mutex
	mu      sync.RWMutex
	state   State
	returns *risk.DailyReturns
	seeded  bool
	fatal   error
}

func New(opts Options, deps Deps) *Orchestrator {
	opts.defaults()
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Session == nil {
		deps.Session = session.NewMachine(session.DefaultConfig())
	}
	return &Orchestrator{
		opts:       opts,
		feed:       deps.Feed,
		session:    deps.Session,
		engine:     deps.Engine,
		scorer:     deps.Scorer,
		dispatcher: deps.Dispatcher,
		router:     deps.Router,
		journal:    deps.Journal,
		publisher:  deps.Publisher,
		log:        deps.Log.WithField("component", "monitor"),
		clock:      deps.Clock,
		state:      State{Series: make(map[string]*market.PriceSeries)},
		returns:    risk.NewDailyReturns(deps.Scorer.Config().ReturnWindow, opts.Location),
	}
}

// Session reports the connection state.
func (o *Orchestrator) Session() session.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session.State()
}

// State returns a copy of the current state. Series are cloned.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.state
	s.Series = make(map[string]*market.PriceSeries, len(o.state.Series))
	for k, v := range o.state.Series {
		s.Series[k] = v.Clone()
	}
	s.Signals = append([]strategies.Signal(nil), o.state.Signals...)
	s.Orders = append([]router.Result(nil), o.state.Orders...)
	return s
}

// Returns is the daily portfolio return history used for VaR.
func (o *Orchestrator) Returns() []float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.returns.Returns()
}

// seed loads prior daily closes from the journal once.
func (o *Orchestrator) seed(now time.Time) {
	if o.seeded {
		return
	}
	o.seeded = true
	src, ok := o.journal.(dailyCloser)
	if !ok {
		return
	}
	days := o.scorer.Config().ReturnWindow + 1
	closes, err := src.DailyCloses(now.AddDate(0, 0, -2*days), o.opts.Location)
	if err != nil {
		o.log.WithError(err).Warn("seed daily returns")
		return
	}
	o.returns.Seed(closes)
	o.log.WithField("days", len(closes)).Debug("seeded daily returns")
}

func isStale(err error) bool { return errors.Is(err, ErrStaleData) }
