package s2_signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

func dailyPrices(start time.Time, n int, cols []string, price func(i, j int) float64) *contracts.Matrix {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	m := contracts.NewMatrix(dates, cols)
	for i := 0; i < n; i++ {
		for j := range cols {
			m.Set(i, j, price(i, j))
		}
	}
	return m
}

func TestCloseToCloseMomentum_Build(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := dailyPrices(start, 6, []string{"A"}, func(i, _ int) float64 {
		return []float64{100, 110, 121, 133.1, 100, 50}[i]
	})

	sig, err := NewCloseToCloseMomentum(2, 1)
	require.NoError(t, err)

	scores, err := sig.Build(prices)
	require.NoError(t, err)
	require.True(t, scores.SameAxes(prices))

	// pct_change(2): [NaN, NaN, .21, .21, 100/121-1, 50/133.1-1], then shift(1)
	assert.True(t, math.IsNaN(scores.At(0, 0)))
	assert.True(t, math.IsNaN(scores.At(2, 0)))
	assert.InDelta(t, 0.21, scores.At(3, 0), 1e-12)
	assert.InDelta(t, 0.21, scores.At(4, 0), 1e-12)
	assert.InDelta(t, 100.0/121-1, scores.At(5, 0), 1e-12)
}

func TestCloseToCloseMomentum_NoLookAhead(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := dailyPrices(start, 30, []string{"A", "B"}, func(i, j int) float64 {
		return 100 + float64(i*(j+1))
	})
	perturbed := base.Clone()
	for i := 20; i < 30; i++ {
		perturbed.Set(i, 0, 1)
		perturbed.Set(i, 1, 1e6)
	}

	sig := &CloseToCloseMomentum{Lookback: 5, Skip: 0}
	a, err := sig.Build(base)
	require.NoError(t, err)
	b, err := sig.Build(perturbed)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		for j := 0; j < 2; j++ {
			if math.IsNaN(a.At(i, j)) {
				assert.True(t, math.IsNaN(b.At(i, j)))
				continue
			}
			assert.Equal(t, a.At(i, j), b.At(i, j), "row %d col %d", i, j)
		}
	}
}

func TestCloseToCloseMomentum_InvalidParams(t *testing.T) {
	tests := []struct {
		name           string
		lookback, skip int
	}{
		{"zero lookback", 0, 0},
		{"negative skip", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCloseToCloseMomentum(tt.lookback, tt.skip)
			assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
		})
	}
}

func TestMonthlyMomentum_Build(t *testing.T) {
	// one price per month end plus one mid-month date
	dates := []time.Time{
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	prices := contracts.NewMatrix(dates, []string{"A"})
	for i, v := range []float64{100, 999, 110, 999, 121, 999, 999} {
		prices.Set(i, 0, v)
	}

	sig, err := NewMonthlyMomentum(1, 0)
	require.NoError(t, err)

	scores, err := sig.Build(prices)
	require.NoError(t, err)

	// monthly returns: Feb .10 on Feb 29, Mar .10 on Mar 29, Apr (999/121-1) on Apr 2
	// daily ffill then one-day lag
	assert.True(t, math.IsNaN(scores.At(2, 0)))
	assert.InDelta(t, 0.10, scores.At(3, 0), 1e-12)
	assert.InDelta(t, 0.10, scores.At(4, 0), 1e-12)
	assert.InDelta(t, 0.10, scores.At(5, 0), 1e-12)
	assert.InDelta(t, 0.10, scores.At(6, 0), 1e-12)
}
