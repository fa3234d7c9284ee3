package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func seriesOf(instr string, retention int, prices ...float64) *PriceSeries {
	s := NewPriceSeries(instr, retention)
	for i, p := range prices {
		_ = s.Append(PricePoint{Time: t0.Add(time.Duration(i) * time.Minute), Price: p})
	}
	return s
}

func TestPriceSeriesAppendRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	s := seriesOf("AAPL", 0, 1, 2, 3)
	err := s.Append(PricePoint{Time: t0.Add(time.Minute), Price: 9})
	assert.ErrorIs(t, err, ErrOutOfOrder)

	err = s.Append(PricePoint{Time: t0.Add(2 * time.Minute), Price: 9})
	assert.ErrorIs(t, err, ErrOutOfOrder, "equal timestamps are rejected too")
	assert.Equal(t, 3, s.Len())
}

func TestPriceSeriesEvictsOldest(t *testing.T) {
	t.Parallel()

	s := seriesOf("AAPL", 3, 1, 2, 3, 4, 5)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{3, 4, 5}, s.Closes())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.Price)
}

func TestPriceSeriesMergeSkipsOverlap(t *testing.T) {
	t.Parallel()

	s := seriesOf("AAPL", 10, 1, 2, 3)
	window := seriesOf("AAPL", 10, 1, 2, 3, 4, 5)

	added := s.Merge(window)
	assert.Equal(t, 2, added)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, s.Closes())
	assert.Zero(t, s.Merge(nil))
}

func TestPriceSeriesCloneIsIndependent(t *testing.T) {
	t.Parallel()

	s := seriesOf("AAPL", 10, 1, 2)
	c := s.Clone()
	require.NoError(t, c.Append(PricePoint{Time: t0.Add(time.Hour), Price: 3}))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 10, c.Retention())
}

func TestPriceSeriesDefaultRetention(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultRetention, NewPriceSeries("X", 0).Retention())
	_, ok := NewPriceSeries("X", 0).Last()
	assert.False(t, ok)
}
