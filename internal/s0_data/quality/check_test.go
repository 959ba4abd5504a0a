package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func panel(rows int, cols []string) *contracts.Matrix {
	dates := make([]time.Time, rows)
	for i := range dates {
		dates[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return contracts.NewMatrixFilled(dates, cols, 100)
}

func TestGate_Check(t *testing.T) {
	prices := panel(20, []string{"A", "B", "C"})
	// B: interior gap of 7 days
	for i := 5; i < 12; i++ {
		prices.Set(i, 1, math.NaN())
	}
	// C: listed on day 10, leading gap is not stale
	for i := 0; i < 10; i++ {
		prices.Set(i, 2, math.NaN())
	}
	sectors := contracts.StaticLabels(prices.Dates, map[string]string{"A": "Tech", "B": "Energy"})

	report := NewGate(DefaultConfig(), logger.Nop()).Check(prices, sectors)

	assert.Equal(t, 20, report.Dates)
	assert.Equal(t, 3, report.Instruments)
	assert.InDelta(t, 1.0, report.Coverage["A"], 1e-12)
	assert.InDelta(t, 13.0/20, report.Coverage["B"], 1e-12)
	assert.Equal(t, []string{"B", "C"}, report.LowCoverage)

	require.Len(t, report.StaleRuns, 1)
	assert.Equal(t, StaleRun{Instrument: "B", StartRow: 5, Length: 7}, report.StaleRuns[0])

	assert.InDelta(t, 2.0/3, report.SectorCoverage, 1e-12)
	assert.Equal(t, []string{"C"}, report.Unlabeled)
	assert.ElementsMatch(t, []string{"LOW_PRICE_COVERAGE", "STALE_PRICES", "MISSING_SECTORS"}, report.Warnings)
	assert.False(t, report.Passed())
}

func TestGate_CleanData(t *testing.T) {
	prices := panel(10, []string{"A", "B"})
	report := NewGate(DefaultConfig(), logger.Nop()).Check(prices, nil)

	assert.True(t, report.Passed())
	assert.Equal(t, 1.0, report.PriceCoverage)
	assert.Equal(t, -1.0, report.SectorCoverage)
}

func TestGate_TrailingGapIsNotStale(t *testing.T) {
	prices := panel(15, []string{"A"})
	for i := 5; i < 15; i++ {
		prices.Set(i, 0, math.NaN())
	}
	cfg := DefaultConfig()
	cfg.MinPriceCoverage = 0

	report := NewGate(cfg, logger.Nop()).Check(prices, nil)
	assert.Empty(t, report.StaleRuns)
	assert.True(t, report.Passed())
}
