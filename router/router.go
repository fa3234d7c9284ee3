// Package router is the safety gate between strategy signals and the broker.
// Nothing reaches the broker unless live trading is switched on.
package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/market"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/strategies"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrOrderSubmission wraps a broker failure on a live order. Orders are
// never retried.
var ErrOrderSubmission = errors.New("order submission failed")

type Status int

const (
	Suppressed Status = iota
	Rejected
	Submitted
)

func (s Status) String() string {
	switch s {
	case Rejected:
		return "rejected"
	case Submitted:
		return "submitted"
	default:
		return "suppressed"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the gate's decision for one signal.
type Result struct {
	Status Status              `json:"status"`
	Reason string              `json:"reason"`
	Mode   string              `json:"mode"`
	Order  broker.Order        `json:"order"`
	Fill   *broker.OrderResult `json:"fill,omitempty"`
	At     time.Time           `json:"at"`
}

// View is the account and risk state the gate checks a signal against.
// Exposure is the absolute market value held per instrument.
type View struct {
	NetLiquidation    float64
	Exposure          map[string]float64
	Breached          map[string]bool
	PortfolioBreached bool
}

// ViewOf builds a View from a snapshot and its assessment.
func ViewOf(snap market.Snapshot, a risk.Assessment) View {
	v := View{
		NetLiquidation:    snap.Account.NetLiquidation,
		Exposure:          make(map[string]float64, len(snap.Positions)),
		Breached:          a.BreachedInstruments(),
		PortfolioBreached: a.PortfolioBreached(),
	}
	for _, p := range snap.Positions {
		if p.Quantity != 0 {
			v.Exposure[p.Instrument] += math.Abs(p.MarketValue)
		}
	}
	return v
}

// Submitter is the order half of a feed.
type Submitter interface {
	SubmitOrder(ctx context.Context, o broker.Order) (broker.OrderResult, error)
}

// Recorder persists gate decisions.
type Recorder interface {
	RecordOrder(r Result) error
}

// Config sets the gate's mode and its live order limits. Zero limits take
// the defaults.
type Config struct {
	Live            bool    `json:"live" yaml:"live"`
	PositionSizePct float64 `json:"position_size_pct" yaml:"position_size_pct"`
	// MaxTradesPerDay caps live submissions per calendar day in Location.
	MaxTradesPerDay int `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	// MaxPositionCount caps distinct holdings a buy may open.
	MaxPositionCount int `json:"max_position_count" yaml:"max_position_count"`
	// MaxPositionPct caps one instrument's exposure after a buy, as a
	// fraction of net liquidation.
	MaxPositionPct float64        `json:"max_position_size_pct" yaml:"max_position_size_pct"`
	Location       *time.Location `json:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		PositionSizePct:  0.05,
		MaxTradesPerDay:  10,
		MaxPositionCount: 15,
		MaxPositionPct:   0.10,
	}
}

type Router struct {
	cfg      Config
	feed     Submitter
	recorder Recorder
	log      *logrus.Entry
	now      func() time.Time

	mu     sync.Mutex
	day    string
	trades int
}

// New returns a gate. Live defaults to off; rec may be nil.
func New(cfg Config, feed Submitter, rec Recorder, log *logrus.Entry) *Router {
	def := DefaultConfig()
	if cfg.PositionSizePct <= 0 {
		cfg.PositionSizePct = def.PositionSizePct
	}
	if cfg.MaxTradesPerDay <= 0 {
		cfg.MaxTradesPerDay = def.MaxTradesPerDay
	}
	if cfg.MaxPositionCount <= 0 {
		cfg.MaxPositionCount = def.MaxPositionCount
	}
	if cfg.MaxPositionPct <= 0 {
		cfg.MaxPositionPct = def.MaxPositionPct
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{
		cfg:      cfg,
		feed:     feed,
		recorder: rec,
		log:      log.WithField("component", "router"),
		now:      time.Now,
	}
}

func (r *Router) Live() bool { return r.cfg.Live }

func (r *Router) mode() string {
	if r.cfg.Live {
		return "live"
	}
	return "paper"
}

// Submit decides what happens to sig. A hold is suppressed unrecorded. In
// paper mode every order, sized or not, is suppressed and logged as a paper
// trade. In live mode an unsizeable order is suppressed; an order for an
// instrument in breach, a buy while a portfolio-wide limit is breached, or an
// order past the trade, position count or position size limits is rejected;
// anything else is sent to the broker exactly once.
func (r *Router) Submit(ctx context.Context, sig strategies.Signal, v View) (Result, error) {
	res := Result{Status: Suppressed, Mode: r.mode(), At: r.now()}

	if !sig.Actionable() {
		res.Reason = "hold"
		return res, nil
	}

	res.Order = r.order(sig, v)
	sized := res.Order.Quantity.IsPositive()

	if !r.cfg.Live {
		res.Reason = "paper trading"
		if !sized {
			res.Reason = "zero quantity"
		}
		r.entry(res).Info("paper_trade")
		return r.record(res), nil
	}

	if !sized {
		res.Reason = "zero quantity"
		r.entry(res).Debug("order sized to zero")
		return r.record(res), nil
	}

	if reason := r.refuse(res.Order, v); reason != "" {
		res.Status = Rejected
		res.Reason = reason
		r.entry(res).Warn("order rejected")
		return r.record(res), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tradesToday(res.At) >= r.cfg.MaxTradesPerDay {
		res.Status = Rejected
		res.Reason = fmt.Sprintf("daily trade limit of %d reached", r.cfg.MaxTradesPerDay)
		r.entry(res).Warn("order rejected")
		return r.record(res), nil
	}

	fill, err := r.feed.SubmitOrder(ctx, res.Order)
	if err != nil {
		res.Status = Rejected
		res.Reason = err.Error()
		r.entry(res).WithError(err).Error("order submission failed")
		r.record(res)
		return res, fmt.Errorf("%w: %s %s: %w", ErrOrderSubmission, res.Order.Side, res.Order.Instrument, err)
	}
	r.trades++

	res.Status = Submitted
	res.Fill = &fill
	res.Reason = fill.Status
	r.entry(res).WithFields(logrus.Fields{
		"order_id":     fill.OrderID,
		"trades_today": r.trades,
	}).Info("order submitted")
	return r.record(res), nil
}

// refuse returns why o may not go out given v, or "" when it may.
func (r *Router) refuse(o broker.Order, v View) string {
	if v.Breached[o.Instrument] {
		return fmt.Sprintf("%s has an active risk breach", o.Instrument)
	}
	if o.Side != broker.SideBuy {
		return ""
	}
	if v.PortfolioBreached {
		return "portfolio risk limit breached"
	}

	held := v.Exposure[o.Instrument]
	if held == 0 && len(v.Exposure) >= r.cfg.MaxPositionCount {
		return fmt.Sprintf("position count limit of %d reached", r.cfg.MaxPositionCount)
	}
	if v.NetLiquidation <= 0 {
		return "no net liquidation to size against"
	}
	notional, _ := o.Notional().Float64()
	if after := (held + notional) / v.NetLiquidation; after > r.cfg.MaxPositionPct {
		return fmt.Sprintf("%s would be %.1f%% of net liquidation, limit %.1f%%",
			o.Instrument, 100*after, 100*r.cfg.MaxPositionPct)
	}
	return ""
}

// tradesToday rolls the counter over at midnight in the configured location.
// The caller holds r.mu.
func (r *Router) tradesToday(now time.Time) int {
	if day := now.In(r.cfg.Location).Format("2006-01-02"); day != r.day {
		r.day = day
		r.trades = 0
	}
	return r.trades
}

func (r *Router) order(sig strategies.Signal, v View) broker.Order {
	o := broker.Order{
		ClientID:   uuid.NewString(),
		Instrument: sig.Instrument,
		Type:       broker.Market,
		RefPrice:   sig.Price,
		Strategy:   sig.Strategy,
		Reason:     sig.Reason,
		CreatedAt:  sig.At,
	}
	switch sig.Direction {
	case strategies.Buy:
		o.Side = broker.SideBuy
		o.Quantity = risk.Size(risk.SizeInputs{
			Equity:        v.NetLiquidation,
			AllocationPct: r.cfg.PositionSizePct,
			Price:         sig.Price,
		})
	case strategies.Sell:
		o.Side = broker.SideSell
		o.Quantity = decimal.Zero
		if sig.Held > 0 {
			o.Quantity = decimal.NewFromFloat(sig.Held)
		}
	}
	return o
}

func (r *Router) record(res Result) Result {
	if r.recorder == nil {
		return res
	}
	if err := r.recorder.RecordOrder(res); err != nil {
		r.log.WithError(err).Warn("record order")
	}
	return res
}

func (r *Router) entry(res Result) *logrus.Entry {
	o := res.Order
	return r.log.WithFields(logrus.Fields{
		"mode":       res.Mode,
		"status":     res.Status.String(),
		"reason":     res.Reason,
		"client_id":  o.ClientID,
		"instrument": o.Instrument,
		"side":       string(o.Side),
		"quantity":   o.Quantity.String(),
		"ref_price":  o.RefPrice,
		"notional":   o.Notional().StringFixed(2),
		"strategy":   o.Strategy,
	})
}
