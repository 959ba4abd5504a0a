package contracts

import (
	"math"
	"time"
)

// Series is a single value per date (gross/net return, cost, equity)
type Series struct {
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// NewSeries creates a zero-valued series on the given dates
func NewSeries(dates []time.Time) *Series {
	return &Series{
		Dates:  append([]time.Time(nil), dates...),
		Values: make([]float64, len(dates)),
	}
}

// Len returns the number of observations
func (s *Series) Len() int {
	return len(s.Dates)
}

// Reindex conforms the series to dates, using fill where a date is absent or NaN
func (s *Series) Reindex(dates []time.Time, fill float64) *Series {
	out := NewSeries(dates)
	lookup := dateLookup(s.Dates)
	for i, d := range dates {
		out.Values[i] = fill
		if src, ok := lookup[dateKey(d)]; ok && !math.IsNaN(s.Values[src]) {
			out.Values[i] = s.Values[src]
		}
	}
	return out
}

// Shift moves values down by periods (positive) or up (negative); vacated slots are NaN
func (s *Series) Shift(periods int) *Series {
	out := NewSeries(s.Dates)
	for i := range out.Values {
		src := i - periods
		if src < 0 || src >= len(s.Values) {
			out.Values[i] = math.NaN()
			continue
		}
		out.Values[i] = s.Values[src]
	}
	return out
}

// Sum adds all non-NaN values
func (s *Series) Sum() float64 {
	sum := 0.0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// Valid returns the non-NaN values in date order
func (s *Series) Valid() []float64 {
	out := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Value returns the value on date and whether it exists
func (s *Series) Value(date time.Time) (float64, bool) {
	for i, d := range s.Dates {
		if d.Equal(date) {
			return s.Values[i], true
		}
	}
	return 0, false
}
