package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/portmon/indicators"
	"github.com/rustyeddy/portmon/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func rsiSet(v float64) indicators.Set {
	return indicators.Set{Instrument: "AAPL", Points: 20, Price: indicators.Reading{Value: 100, Ready: true},
		RSI: indicators.Reading{Value: v, Ready: true}}
}

func momentumSet(v float64) indicators.Set {
	return indicators.Set{Instrument: "AAPL", Points: 30, Price: indicators.Reading{Value: 100, Ready: true},
		Momentum: indicators.Reading{Value: v, Ready: true}}
}

func TestMACrossSignalsAtExactCrossIndex(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Name: "mac", Kind: KindMACrossover, Params: Params{FastWindow: 2, SlowWindow: 3}})
	require.NoError(t, err)

	prices := []float64{10, 9, 8, 7, 8, 9, 10, 9, 8, 7}
	want := map[int]Direction{5: Buy, 8: Sell}

	for i := range prices {
		set := indicators.ComputeValues("AAPL", prices[:i+1], base.Add(time.Duration(i)*time.Minute), s.Params())
		sig, err := s.Evaluate(set, nil)
		if i < 3 {
			assert.ErrorIs(t, err, ErrUndetermined, "index %d", i)
			continue
		}
		require.NoError(t, err, "index %d", i)
		assert.Equal(t, want[i], sig.Direction, "index %d", i)
		if sig.Actionable() {
			assert.Greater(t, sig.Strength, 0.0)
			assert.LessOrEqual(t, sig.Strength, 1.0)
			assert.Equal(t, prices[i], sig.Price)
			assert.NotEmpty(t, sig.Reason)
		}
	}
}

func TestMACrossRejectsBadWindows(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Name: "bad", Kind: KindMACrossover, Params: Params{FastWindow: 30, SlowWindow: 10}})
	assert.Error(t, err)

	_, err = New(Config{Name: "bad", Kind: KindMACrossover, Params: Params{MAType: "wma"}})
	assert.Error(t, err)
}

func TestMACrossEMA(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Name: "emac", Kind: KindMACrossover, Params: Params{FastWindow: 2, SlowWindow: 3, MAType: "EMA"}})
	require.NoError(t, err)
	assert.True(t, s.Params().Exponential)

	prices := []float64{10, 9, 8, 7, 8, 9, 10}
	var got []Direction
	for i := range prices {
		set := indicators.ComputeValues("AAPL", prices[:i+1], base.Add(time.Duration(i)*time.Minute), s.Params())
		sig, err := s.Evaluate(set, nil)
		if err != nil {
			continue
		}
		if sig.Actionable() {
			got = append(got, sig.Direction)
			assert.Contains(t, sig.Reason, "EMA(2)")
		}
	}
	assert.Equal(t, []Direction{Buy}, got)
}

func TestRSIMeanReversion(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Name: "rsi", Kind: "rsi"})
	require.NoError(t, err)
	assert.Equal(t, KindRSIMeanReversion, s.Kind())
	assert.Equal(t, 14, s.Params().RSIPeriod)

	tests := []struct {
		name     string
		rsi      float64
		dir      Direction
		strength float64
	}{
		{"extreme oversold", 15, Buy, 0.8},
		{"oversold", 25, Buy, 1.0 / 3},
		{"oversold floor", 29, Buy, 0.3},
		{"neutral", 50, Hold, 0},
		{"overbought", 75, Sell, 1.0 / 3},
		{"extreme overbought", 85, Sell, 0.8},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sig, err := s.Evaluate(rsiSet(tt.rsi), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.dir, sig.Direction)
			assert.InDelta(t, tt.strength, sig.Strength, 1e-9)
		})
	}

	_, err = s.Evaluate(indicators.Set{Instrument: "AAPL"}, nil)
	assert.ErrorIs(t, err, ErrUndetermined)
	assert.ErrorIs(t, err, indicators.ErrInsufficientHistory)
}

func TestMomentum(t *testing.T) {
	t.Parallel()

	s, err := New(Config{Name: "mom", Kind: KindMomentum, Params: Params{Lookback: 10, Threshold: 0.05}})
	require.NoError(t, err)

	pos := &market.Position{Instrument: "AAPL", Quantity: 25}

	sig, err := s.Evaluate(momentumSet(0.06), pos)
	require.NoError(t, err)
	assert.Equal(t, Buy, sig.Direction)
	assert.InDelta(t, 0.6, sig.Strength, 1e-9)
	assert.Equal(t, 25.0, sig.Held)

	sig, err = s.Evaluate(momentumSet(-0.12), pos)
	require.NoError(t, err)
	assert.Equal(t, Sell, sig.Direction)
	assert.Equal(t, 1.0, sig.Strength)

	sig, err = s.Evaluate(momentumSet(0.01), nil)
	require.NoError(t, err)
	assert.Equal(t, Hold, sig.Direction)
	assert.Zero(t, sig.Held)
}

func TestNewUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Name: "x", Kind: "pairs"})
	assert.ErrorContains(t, err, "unknown strategy kind")
	assert.Len(t, Kinds(), 3)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Config{Name: "a", Kind: "ma-cross", Instruments: []string{"SPY"}}.Validate())
	assert.Error(t, Config{Kind: KindMomentum, Instruments: []string{"SPY"}}.Validate())
	assert.Error(t, Config{Name: "a", Kind: KindMomentum}.Validate())
	assert.Error(t, Config{Name: "a", Kind: KindMomentum, Instruments: []string{"SPY"}, Params: Params{MinStrength: 2}}.Validate())
}

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "HOLD", Hold.String())
	b, err := Sell.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "SELL", string(b))
}
