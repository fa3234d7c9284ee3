package market

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRetention bounds a PriceSeries when no explicit cap is given.
const DefaultRetention = 500

var ErrOutOfOrder = errors.New("price point out of order")

// PricePoint is one observation of an instrument's price.
type PricePoint struct {
	Time  time.Time `json:"time" yaml:"time"`
	Price float64   `json:"price" yaml:"price"`
}

// PriceSeries is an append-only, time-ordered price history for a single
// instrument. Once the retention cap is reached the oldest points are evicted.
type PriceSeries struct {
	Instrument string
	retention  int
	points     []PricePoint
}

func NewPriceSeries(instrument string, retention int) *PriceSeries {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PriceSeries{Instrument: instrument, retention: retention}
}

// Append adds p to the end of the series. Timestamps must strictly increase.
func (s *PriceSeries) Append(p PricePoint) error {
	if n := len(s.points); n > 0 && !p.Time.After(s.points[n-1].Time) {
		return fmt.Errorf("%w: %s at %s not after %s", ErrOutOfOrder,
			s.Instrument, p.Time.Format(time.RFC3339), s.points[n-1].Time.Format(time.RFC3339))
	}
	s.points = append(s.points, p)
	s.evict()
	return nil
}

// Merge appends the points of other that are newer than the last point held,
// returning how many were added. Feeds return overlapping windows, so older
// points are skipped rather than rejected.
func (s *PriceSeries) Merge(other *PriceSeries) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, p := range other.points {
		if n := len(s.points); n > 0 && !p.Time.After(s.points[n-1].Time) {
			continue
		}
		s.points = append(s.points, p)
		added++
	}
	s.evict()
	return added
}

func (s *PriceSeries) evict() {
	if over := len(s.points) - s.retention; over > 0 {
		s.points = append(s.points[:0:0], s.points[over:]...)
	}
}

func (s *PriceSeries) Len() int { return len(s.points) }

func (s *PriceSeries) Retention() int { return s.retention }

// Last returns the most recent point.
func (s *PriceSeries) Last() (PricePoint, bool) {
	if len(s.points) == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// Points returns a copy of the held points, oldest first.
func (s *PriceSeries) Points() []PricePoint {
	out := make([]PricePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns the prices, oldest first.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Price
	}
	return out
}

// Clone returns an independent copy.
func (s *PriceSeries) Clone() *PriceSeries {
	return &PriceSeries{
		Instrument: s.Instrument,
		retention:  s.retention,
		points:     s.Points(),
	}
}
