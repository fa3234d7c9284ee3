package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/portmon/broker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newFeed(t *testing.T) *Feed {
	t.Helper()
	cfg := Config{
		Cash:     10_000,
		Holdings: []Holding{{Instrument: "AAPL", Quantity: 10, AvgCost: 100}},
		Prices:   map[string]float64{"AAPL": 110},
		Warmup:   30,
		Seed:     42,
		Clock:    fixedClock(),
	}
	f := New(cfg)
	require.NoError(t, f.Connect(context.Background(), broker.Endpoint{Host: "127.0.0.1", Port: 7497, ClientID: 1}))
	return f
}

func TestCallsBeforeConnect(t *testing.T) {
	t.Parallel()

	f := New(Demo())
	err := f.Heartbeat(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotConnected)
}

func TestSnapshotValuesAccount(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	acct, positions, err := f.PullSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "AAPL", p.Instrument)
	assert.InDelta(t, p.Quantity*p.MarketPrice, p.MarketValue, 1e-9)
	assert.InDelta(t, (p.MarketPrice-100)*10, p.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10_000+p.MarketValue, acct.NetLiquidation, 1e-9)
	assert.NotEmpty(t, acct.ID)
	assert.False(t, acct.CapturedAt.IsZero())
	assert.Greater(t, acct.MarginUtilization, 0.0)
}

func TestPullPricesWindow(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	s, err := f.PullPrices(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())

	s, err = f.PullPrices(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, 30, s.Len())
}

func TestDelayHonoursContext(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	f.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := f.PullSnapshot(ctx)
	assert.ErrorIs(t, err, broker.ErrConnectivity)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFailNextIsOneShot(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	boom := errors.New("boom")
	f.FailNext(OpHeartbeat, boom)

	assert.ErrorIs(t, f.Heartbeat(context.Background()), boom)
	assert.NoError(t, f.Heartbeat(context.Background()))
}

func TestMarketOrderFills(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	f.SetPrice("AAPL", 120)

	res, err := f.SubmitOrder(context.Background(), broker.Order{
		ClientID: "c1", Instrument: "AAPL", Side: broker.SideSell, Type: broker.Market, Quantity: decimal.NewFromInt(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "Filled", res.Status)
	assert.Equal(t, 120.0, res.AvgPrice)
	assert.Len(t, f.Submitted(), 1)

	acct, positions, err := f.PullSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 6.0, positions[0].Quantity)
	assert.Equal(t, 100.0, positions[0].AvgCost)
	assert.InDelta(t, 80, acct.RealizedPnL, 1e-9)
	assert.InDelta(t, 10_480, acct.AvailableCash, 1e-9)
}

func TestLimitOrderRests(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	f.SetPrice("AAPL", 120)

	_, err := f.SubmitOrder(context.Background(), broker.Order{
		Instrument: "AAPL", Side: broker.SideBuy, Type: broker.Limit,
		Quantity: decimal.NewFromInt(5), LimitPrice: decimal.NewFromInt(90),
	})
	require.NoError(t, err)

	open, err := f.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "5", open[0].Remaining().String())

	f.SetPrice("AAPL", 89)
	open, err = f.OpenOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRejectsBadOrder(t *testing.T) {
	t.Parallel()

	f := newFeed(t)
	_, err := f.SubmitOrder(context.Background(), broker.Order{Instrument: "AAPL", Side: broker.SideBuy, Quantity: decimal.Zero})
	assert.ErrorIs(t, err, broker.ErrOrderRejected)
}
