// Package calendar selects rebalance dates from a daily trading index.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// Frequency is a rebalance schedule
type Frequency string

const (
	// Daily rebalances on every trading date
	Daily Frequency = "DAILY"
	// MonthEnd rebalances on the last trading date present in each calendar month
	MonthEnd Frequency = "MONTH_END"
)

// ParseFrequency normalizes a frequency name ("month_end", "MONTH_END").
// Unknown names are rejected with ErrInvalidConfiguration.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown rebalance frequency %q", contracts.ErrInvalidConfiguration, s)
	}
	return f, nil
}

// Valid reports whether f is a supported frequency
func (f Frequency) Valid() bool {
	return f == Daily || f == MonthEnd
}

// Resolve returns the rebalance dates for an increasing daily index
// ⭐ SSOT: 리밸런싱 날짜 결정은 여기서만
//
// The result is a subsequence of dates. A month-end date is the last date
// actually present in the index for that month, never a calendar month end.
func Resolve(dates []time.Time, freq Frequency) ([]time.Time, error) {
	switch freq {
	case Daily:
		return append([]time.Time(nil), dates...), nil
	case MonthEnd:
		return monthEnds(dates), nil
	default:
		return nil, fmt.Errorf("%w: unknown rebalance frequency %q", contracts.ErrInvalidConfiguration, freq)
	}
}

func monthEnds(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates)/20+1)
	for i, d := range dates {
		if i+1 < len(dates) && sameMonth(d, dates[i+1]) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthEndIndex returns the positions in dates of each month's last date
func MonthEndIndex(dates []time.Time) []int {
	idx := make([]int, 0, len(dates)/20+1)
	for i, d := range dates {
		if i+1 < len(dates) && sameMonth(d, dates[i+1]) {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}
