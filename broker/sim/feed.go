// Package sim is an in-memory brokerage feed. Prices follow a seeded random
// walk, market orders fill at the last price, and limit orders rest until the
// walk crosses them. It backs paper demos and tests.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/internal/id"
	"github.com/rustyeddy/portmon/market"
	"github.com/shopspring/decimal"
)

// Operation names accepted by FailNext.
const (
	OpConnect    = "connect"
	OpHeartbeat  = "heartbeat"
	OpSnapshot   = "snapshot"
	OpPrices     = "prices"
	OpOrder      = "order"
	OpOpenOrders = "orders"
)

type Holding struct {
	Instrument string  `json:"instrument" yaml:"instrument"`
	Quantity   float64 `json:"quantity" yaml:"quantity"`
	AvgCost    float64 `json:"avg_cost" yaml:"avg_cost"`
}

type Config struct {
	Cash       float64            `json:"cash" yaml:"cash"`
	Holdings   []Holding          `json:"holdings" yaml:"holdings"`
	Prices     map[string]float64 `json:"prices" yaml:"prices"`
	Volatility float64            `json:"volatility" yaml:"volatility"` // per-step stdev of returns
	MarginRate float64            `json:"margin_rate" yaml:"margin_rate"`
	Warmup     int                `json:"warmup" yaml:"warmup"` // history generated on connect
	Seed       int64              `json:"seed" yaml:"seed"`

	Clock func() time.Time `json:"-" yaml:"-"`
}

// Demo is a small diversified account.
func Demo() Config {
	return Config{
		Cash: 40_000,
		Holdings: []Holding{
			{Instrument: "AAPL", Quantity: 100, AvgCost: 180},
			{Instrument: "MSFT", Quantity: 40, AvgCost: 390},
			{Instrument: "SPY", Quantity: 30, AvgCost: 500},
		},
		Prices: map[string]float64{
			"AAPL": 195, "MSFT": 410, "SPY": 520, "QQQ": 440, "TSLA": 240,
		},
		Volatility: 0.01,
		MarginRate: 0.25,
		Warmup:     120,
		Seed:       1,
	}
}

type holding struct {
	qty     float64
	avgCost float64
}

type Feed struct {
	mu sync.Mutex

	cfg       Config
	rng       *rand.Rand
	connected bool
	endpoint  broker.Endpoint

	cash     float64
	realized float64
	holdings map[string]*holding
	prices   map[string]*market.PriceSeries
	last     time.Time

	working   []broker.OpenOrder
	submitted []broker.Order

	delay time.Duration
	fail  map[string]error
}

func New(cfg Config) *Feed {
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.01
	}
	if cfg.MarginRate <= 0 {
		cfg.MarginRate = 0.25
	}
	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	f := &Feed{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		cash:     cfg.Cash,
		holdings: make(map[string]*holding),
		prices:   make(map[string]*market.PriceSeries),
		fail:     make(map[string]error),
	}
	for _, h := range cfg.Holdings {
		f.holdings[h.Instrument] = &holding{qty: h.Quantity, avgCost: h.AvgCost}
	}
	return f
}

// SetDelay makes every call wait d before answering, or until its context is
// done.
func (f *Feed) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// FailNext makes the next call of op return err.
func (f *Feed) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

// Submitted returns every order that reached SubmitOrder.
func (f *Feed) Submitted() []broker.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]broker.Order, len(f.submitted))
	copy(out, f.submitted)
	return out
}

// SetPrice appends a price for instrument at the next tick time.
func (f *Feed) SetPrice(instrument string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.seriesLocked(instrument)
	_ = s.Append(market.PricePoint{Time: f.tickLocked(), Price: price})
	f.fillWorkingLocked()
}

func (f *Feed) Connect(ctx context.Context, ep broker.Endpoint) error {
	if err := f.enter(ctx, OpConnect); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return nil
	}
	f.endpoint = ep
	f.connected = true
	if len(f.prices) == 0 {
		f.warmupLocked()
	}
	return nil
}

func (f *Feed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Feed) Heartbeat(ctx context.Context) error {
	return f.enter(ctx, OpHeartbeat)
}

// PullSnapshot advances every price one step and reports the account.
func (f *Feed) PullSnapshot(ctx context.Context) (market.AccountSnapshot, []market.Position, error) {
	if err := f.enter(ctx, OpSnapshot); err != nil {
		return market.AccountSnapshot{}, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stepLocked()

	var (
		positions  []market.Position
		value      float64
		unrealized float64
		gross      float64
	)
	for instr, h := range f.holdings {
		if h.qty == 0 {
			continue
		}
		px := f.lastPriceLocked(instr)
		mv := h.qty * px
		upl := (px - h.avgCost) * h.qty
		positions = append(positions, market.Position{
			Instrument:    instr,
			Quantity:      h.qty,
			AvgCost:       h.avgCost,
			MarketPrice:   px,
			MarketValue:   mv,
			UnrealizedPnL: upl,
		})
		value += mv
		unrealized += upl
		gross += math.Abs(mv)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Instrument < positions[j].Instrument })

	nlv := f.cash + value
	used := gross * f.cfg.MarginRate
	acct := market.AccountSnapshot{
		ID:                id.At(f.last),
		NetLiquidation:    nlv,
		AvailableCash:     f.cash,
		UnrealizedPnL:     unrealized,
		RealizedPnL:       f.realized,
		MarginUsed:        used,
		MarginAvailable:   nlv,
		MarginUtilization: market.MarginUtilization(used, nlv),
		CapturedAt:        f.last,
	}
	return acct, positions, nil
}

// PullPrices returns up to window of the most recent points.
func (f *Feed) PullPrices(ctx context.Context, instrument string, window int) (*market.PriceSeries, error) {
	if err := f.enter(ctx, OpPrices); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	pts := f.seriesLocked(instrument).Points()
	if window > 0 && len(pts) > window {
		pts = pts[len(pts)-window:]
	}
	out := market.NewPriceSeries(instrument, len(pts))
	for _, p := range pts {
		_ = out.Append(p)
	}
	return out, nil
}

// SubmitOrder fills market orders immediately at the last price. Limit orders
// rest until the price walk crosses them.
func (f *Feed) SubmitOrder(ctx context.Context, o broker.Order) (broker.OrderResult, error) {
	if err := f.enter(ctx, OpOrder); err != nil {
		return broker.OrderResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, o)
	if !o.Quantity.IsPositive() {
		return broker.OrderResult{}, fmt.Errorf("%w: quantity must be positive", broker.ErrOrderRejected)
	}
	if o.Side != broker.SideBuy && o.Side != broker.SideSell {
		return broker.OrderResult{}, fmt.Errorf("%w: unknown side %q", broker.ErrOrderRejected, o.Side)
	}

	res := broker.OrderResult{
		OrderID:     id.New(),
		ClientID:    o.ClientID,
		Filled:      decimal.Zero,
		SubmittedAt: f.cfg.Clock(),
	}

	if o.Type == broker.Limit {
		f.working = append(f.working, broker.OpenOrder{
			OrderID:    res.OrderID,
			Instrument: o.Instrument,
			Side:       o.Side,
			Type:       o.Type,
			Quantity:   o.Quantity,
			Filled:     decimal.Zero,
			LimitPrice: o.LimitPrice,
			Status:     "Submitted",
			PlacedAt:   res.SubmittedAt,
		})
		res.Status = "Submitted"
		return res, nil
	}

	px := f.lastPriceLocked(o.Instrument)
	f.fillLocked(o.Instrument, o.Side, o.Quantity.InexactFloat64(), px)
	res.Status = "Filled"
	res.Filled = o.Quantity
	res.AvgPrice = px
	return res, nil
}

func (f *Feed) OpenOrders(ctx context.Context) ([]broker.OpenOrder, error) {
	if err := f.enter(ctx, OpOpenOrders); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]broker.OpenOrder, len(f.working))
	copy(out, f.working)
	return out, nil
}

// enter applies injected failures and delay, then checks the session.
func (f *Feed) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	delay := f.delay
	err := f.fail[op]
	delete(f.fail, op)
	connected := f.connected
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", broker.ErrConnectivity, op, ctx.Err())
		case <-timer.C:
		}
	}
	if err != nil {
		return err
	}
	if op != OpConnect && !connected {
		return fmt.Errorf("%s: %w", op, broker.ErrNotConnected)
	}
	return ctx.Err()
}

func (f *Feed) tickLocked() time.Time {
	now := f.cfg.Clock()
	if !now.After(f.last) {
		now = f.last.Add(time.Millisecond)
	}
	f.last = now
	return now
}

func (f *Feed) seriesLocked(instrument string) *market.PriceSeries {
	s, ok := f.prices[instrument]
	if !ok {
		s = market.NewPriceSeries(instrument, 0)
		f.prices[instrument] = s
	}
	return s
}

func (f *Feed) lastPriceLocked(instrument string) float64 {
	if p, ok := f.seriesLocked(instrument).Last(); ok {
		return p.Price
	}
	if px, ok := f.cfg.Prices[instrument]; ok {
		return px
	}
	if h, ok := f.holdings[instrument]; ok && h.avgCost > 0 {
		return h.avgCost
	}
	return 100
}

func (f *Feed) instrumentsLocked() []string {
	seen := map[string]bool{}
	for k := range f.cfg.Prices {
		seen[k] = true
	}
	for k := range f.holdings {
		seen[k] = true
	}
	for k := range f.prices {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// warmupLocked back-fills history so indicators are ready on the first cycle.
func (f *Feed) warmupLocked() {
	n := f.cfg.Warmup
	if n == 0 {
		return
	}
	start := f.cfg.Clock().Add(-time.Duration(n) * time.Minute)
	for _, instr := range f.instrumentsLocked() {
		s := f.seriesLocked(instr)
		px := f.lastPriceLocked(instr)
		for i := 0; i < n; i++ {
			_ = s.Append(market.PricePoint{Time: start.Add(time.Duration(i) * time.Minute), Price: px})
			px = f.walk(px)
		}
	}
	f.last = start.Add(time.Duration(n-1) * time.Minute)
}

func (f *Feed) stepLocked() {
	at := f.tickLocked()
	for _, instr := range f.instrumentsLocked() {
		s := f.seriesLocked(instr)
		_ = s.Append(market.PricePoint{Time: at, Price: f.walk(f.lastPriceLocked(instr))})
	}
	f.fillWorkingLocked()
}

func (f *Feed) walk(px float64) float64 {
	next := px * (1 + f.rng.NormFloat64()*f.cfg.Volatility)
	if next <= 0.01 {
		next = 0.01
	}
	return math.Round(next*100) / 100
}

func (f *Feed) fillWorkingLocked() {
	kept := f.working[:0]
	for _, o := range f.working {
		px := f.lastPriceLocked(o.Instrument)
		limit := o.LimitPrice.InexactFloat64()
		cross := (o.Side == broker.SideBuy && px <= limit) || (o.Side == broker.SideSell && px >= limit)
		if !cross {
			kept = append(kept, o)
			continue
		}
		f.fillLocked(o.Instrument, o.Side, o.Quantity.InexactFloat64(), limit)
	}
	f.working = kept
}

func (f *Feed) fillLocked(instrument string, side broker.Side, qty, px float64) {
	h, ok := f.holdings[instrument]
	if !ok {
		h = &holding{}
		f.holdings[instrument] = h
	}
	if side == broker.SideSell {
		qty = -qty
	}

	switch {
	case h.qty == 0 || (h.qty > 0) == (qty > 0):
		total := h.qty + qty
		h.avgCost = (h.avgCost*h.qty + px*qty) / total
		h.qty = total
	default:
		closing := math.Min(math.Abs(qty), math.Abs(h.qty))
		sign := 1.0
		if h.qty < 0 {
			sign = -1
		}
		f.realized += (px - h.avgCost) * closing * sign
		h.qty += qty
		if math.Abs(h.qty) < 1e-9 {
			h.qty, h.avgCost = 0, 0
		} else if (h.qty > 0) != (sign > 0) {
			h.avgCost = px
		}
	}
	f.cash -= qty * px
}
