package risk

import "time"

// DayClose is the last net liquidation value observed on a calendar day.
type DayClose struct {
	Day   string  `json:"day"` // 2006-01-02
	Value float64 `json:"value"`
}

// DailyReturns turns a stream of net liquidation observations into
// day-over-day returns. It keeps at most window+1 closes.
type DailyReturns struct {
	window int
	loc    *time.Location
	closes []DayClose
}

func NewDailyReturns(window int, loc *time.Location) *DailyReturns {
	if window <= 0 {
		window = 250
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyReturns{window: window, loc: loc}
}

// DayOf formats t as the calendar day used for bucketing.
func (d *DailyReturns) DayOf(t time.Time) string {
	return t.In(d.loc).Format("2006-01-02")
}

// Observe records value as the latest close for the day of t. Observations
// for a day earlier than the last recorded one are ignored.
func (d *DailyReturns) Observe(t time.Time, value float64) {
	if value <= 0 {
		return
	}
	day := d.DayOf(t)
	if n := len(d.closes); n > 0 {
		switch last := d.closes[n-1].Day; {
		case day == last:
			d.closes[n-1].Value = value
			return
		case day < last:
			return
		}
	}
	d.closes = append(d.closes, DayClose{Day: day, Value: value})
	if over := len(d.closes) - (d.window + 1); over > 0 {
		d.closes = append(d.closes[:0:0], d.closes[over:]...)
	}
}

// Seed loads historical closes, oldest first, replacing any held.
func (d *DailyReturns) Seed(closes []DayClose) {
	d.closes = nil
	for _, c := range closes {
		if c.Value <= 0 {
			continue
		}
		if n := len(d.closes); n > 0 && c.Day <= d.closes[n-1].Day {
			continue
		}
		d.closes = append(d.closes, c)
	}
	if over := len(d.closes) - (d.window + 1); over > 0 {
		d.closes = d.closes[over:]
	}
}

// Returns is the day-over-day fractional change, oldest first.
func (d *DailyReturns) Returns() []float64 {
	if len(d.closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(d.closes)-1)
	for i := 1; i < len(d.closes); i++ {
		prev := d.closes[i-1].Value
		out = append(out, (d.closes[i].Value-prev)/prev)
	}
	return out
}

func (d *DailyReturns) Closes() []DayClose {
	out := make([]DayClose, len(d.closes))
	copy(out, d.closes)
	return out
}
