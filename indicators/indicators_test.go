package indicators

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/portmon/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closes() []float64 {
	return []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}
}

func TestSMA(t *testing.T) {
	t.Parallel()

	ma, err := SMA(closes(), 5)
	require.NoError(t, err)
	// last 5: 111,113,114,116,118 => 572/5
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = SMA(closes()[:3], 5)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = SMA(closes(), 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	t.Parallel()

	ema, err := EMA(closes(), 5)
	require.NoError(t, err)
	sma, _ := SMA(closes(), 5)
	// a rising series keeps the EMA above the seed SMA of the first window
	assert.Greater(t, ema, 106.2)
	assert.Less(t, ema, 118.0)
	assert.NotEqual(t, sma, ema)
}

func TestRSI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"strictly increasing", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, 14, 100},
		{"strictly decreasing", []float64{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, 14, 0},
		{"flat", []float64{5, 5, 5, 5}, 3, 50},
		{"wilder smoothing", []float64{1, 2, 1, 2}, 2, 75},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := RSI(tt.values, tt.period)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRSIBounded(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	values := []float64{100}
	for i := 0; i < 300; i++ {
		values = append(values, values[len(values)-1]*(1+rng.NormFloat64()*0.03))
		if len(values) < 15 {
			continue
		}
		got, err := RSI(values, 14)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestRSIInsufficientHistory(t *testing.T) {
	t.Parallel()

	_, err := RSI([]float64{1, 2, 3}, 3)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestMomentum(t *testing.T) {
	t.Parallel()

	got, err := Momentum([]float64{100, 105, 110}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, got, 1e-9)

	_, err = Momentum([]float64{100, 105}, 2)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = Momentum([]float64{0, 1}, 1)
	assert.Error(t, err)
}

func TestComputeReadiness(t *testing.T) {
	t.Parallel()

	p := Params{FastWindow: 2, SlowWindow: 3, RSIPeriod: 2, MomentumLookback: 1}
	assert.Equal(t, 4, p.Required())

	at := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	set := ComputeValues("AAPL", []float64{1, 2, 3}, at, p)
	assert.True(t, set.Fast.Ready)
	assert.True(t, set.Slow.Ready)
	assert.True(t, set.PrevFast.Ready)
	assert.False(t, set.PrevSlow.Ready)
	assert.False(t, set.CrossReady())
	assert.True(t, set.RSI.Ready)
	assert.True(t, set.Momentum.Ready)
	assert.Equal(t, 3.0, set.Price.Value)

	set = ComputeValues("AAPL", []float64{1, 2, 3, 4}, at, p)
	require.True(t, set.CrossReady())
	diff, prev := set.Diff()
	assert.InDelta(t, 0.5, diff, 1e-9) // 3.5 - 3
	assert.InDelta(t, 0.5, prev, 1e-9) // 2.5 - 2
}

func TestComputeSkipsDisabled(t *testing.T) {
	t.Parallel()

	s := market.NewPriceSeries("MSFT", 0)
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, v := range []float64{10, 11, 12} {
		require.NoError(t, s.Append(market.PricePoint{Time: base.Add(time.Duration(i) * time.Hour), Price: v}))
	}

	set := Compute(s, Params{RSIPeriod: 2})
	assert.Equal(t, "MSFT", set.Instrument)
	assert.Equal(t, base.Add(2*time.Hour), set.At)
	assert.False(t, set.Fast.Ready)
	assert.True(t, set.RSI.Ready)
	assert.InDelta(t, 100, set.RSI.Value, 1e-9)

	empty := Compute(nil, Params{RSIPeriod: 2})
	assert.False(t, empty.Price.Ready)
}

func TestComputeExponential(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	closes := []float64{1, 2, 3, 4, 8, 16}

	set := ComputeValues("AAPL", closes, at, Params{FastWindow: 2, SlowWindow: 4, Exponential: true})
	require.True(t, set.CrossReady())

	fast, err := EMA(closes, 2)
	require.NoError(t, err)
	assert.InDelta(t, fast, set.Fast.Value, 1e-9)

	sma := ComputeValues("AAPL", closes, at, Params{FastWindow: 2, SlowWindow: 4})
	// on an accelerating series the EMA leans toward recent values
	assert.Greater(t, set.Slow.Value, sma.Slow.Value)
}
