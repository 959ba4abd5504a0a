package audit

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/portfolio"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/selection"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func days(n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func TestStats(t *testing.T) {
	tests := []struct {
		name    string
		returns []float64
		total   float64
		maxDD   float64
	}{
		{"up then down", []float64{0.1, -0.1}, -0.01, 0.99/1.1 - 1},
		{"monotonic", []float64{0.01, 0.01, 0.01}, math.Pow(1.01, 3) - 1, 0},
		{"nan dropped", []float64{math.NaN(), 0.05, math.NaN()}, 0.05, 0},
		{"empty", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Stats(tt.returns, 0)
			assert.InDelta(t, tt.total, s.TotalReturn, 1e-12)
			assert.InDelta(t, tt.maxDD, s.MaxDrawdown, 1e-12)
			assert.LessOrEqual(t, s.MaxDrawdown, 0.0)
		})
	}
}

func TestCAGR_OneYear(t *testing.T) {
	r := make([]float64, PeriodsPerYear)
	for i := range r {
		r[i] = 0.0004
	}
	assert.InDelta(t, math.Pow(1.0004, PeriodsPerYear)-1, CAGR(r), 1e-12)
}

func TestSharpe(t *testing.T) {
	r := []float64{0.01, -0.005, 0.007, 0.002, -0.003}
	vol := Volatility(r)
	require.Greater(t, vol, 0.0)

	mean := 0.0
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	assert.InDelta(t, mean*PeriodsPerYear/vol, Sharpe(r, 0), 1e-12)

	// constant excess returns carry no risk
	assert.Equal(t, 0.0, Sharpe([]float64{0.001, 0.001, 0.001}, 0))
	// a positive risk-free rate lowers the ratio
	assert.Less(t, Sharpe(r, 0.05), Sharpe(r, 0))
}

func TestTurnoverByYear(t *testing.T) {
	s := &contracts.Series{
		Dates: []time.Time{
			time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		Values: []float64{1, 0.5, math.NaN()},
	}
	byYear := TurnoverByYear(s)
	assert.Equal(t, map[int]float64{2023: 1, 2024: 0.5}, byYear)
	assert.Equal(t, []int{2023, 2024}, Years(byYear))
}

func runTwoAsset(t *testing.T, policy backtest.Alignment, sectors *contracts.LabelMatrix) *backtest.Result {
	t.Helper()
	dates := days(3)
	prices := contracts.NewMatrix(dates, []string{"A", "B"})
	copy(prices.Row(0), []float64{100, 100})
	copy(prices.Row(1), []float64{110, 90})
	copy(prices.Row(2), []float64{121, 81})

	st := backtest.Stages{
		Signal: contracts.SignalFunc(func(p *contracts.Matrix) (*contracts.Matrix, error) {
			out := contracts.NewMatrix(p.Dates, p.Columns)
			for i := range out.Values {
				copy(out.Values[i], []float64{2, 1})
			}
			return out, nil
		}),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{Bps: 10},
	}

	cfg := backtest.DefaultConfig()
	cfg.Frequency = calendar.Daily
	cfg.Alignment = policy

	res, err := backtest.NewEngine(logger.Nop()).Run(context.Background(), cfg,
		backtest.Inputs{Prices: prices, Sectors: sectors}, st)
	require.NoError(t, err)
	return res
}

func TestAnalyzer_Analyze(t *testing.T) {
	res := runTwoAsset(t, backtest.LagWeights, nil)

	report, err := NewAnalyzer(logger.Nop()).Analyze(res, Options{})
	require.NoError(t, err)

	assert.Equal(t, res.Dates[0], report.StartDate)
	assert.Equal(t, res.Dates[2], report.EndDate)
	assert.InDelta(t, res.Costs.Sum(), report.TotalCosts, 1e-12)
	assert.InDelta(t, res.Turnover.Sum(), report.TotalTurnover, 1e-12)
	assert.Less(t, report.Net.TotalReturn, report.Gross.TotalReturn)
	assert.Nil(t, report.Benchmark)
	assert.Nil(t, report.Sectors)
}
