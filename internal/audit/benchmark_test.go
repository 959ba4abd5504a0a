package audit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func benchSeries(n int) *contracts.Series {
	s := contracts.NewSeries(days(n))
	for i := range s.Values {
		s.Values[i] = 0.01 * math.Sin(float64(i))
	}
	return s
}

func TestAgainstBenchmark_LagWeights(t *testing.T) {
	bench := benchSeries(40)
	net := contracts.NewSeries(bench.Dates)
	for i, b := range bench.Values {
		net.Values[i] = 0.001 + 2*b
	}

	reg, err := AgainstBenchmark(net, bench, backtest.LagWeights)
	require.NoError(t, err)
	assert.InDelta(t, 2, reg.Beta, 1e-9)
	assert.InDelta(t, 0.001, reg.AlphaPerPeriod, 1e-9)
	assert.InDelta(t, 0.001*PeriodsPerYear, reg.AlphaAnnual, 1e-7)
	assert.InDelta(t, 1, reg.R2, 1e-9)
	assert.Equal(t, 40, reg.Observations)
}

func TestAgainstBenchmark_ForwardReturnLeadsBenchmark(t *testing.T) {
	bench := benchSeries(40)
	net := contracts.NewSeries(bench.Dates)
	for i := range net.Values {
		if i+1 < len(bench.Values) {
			net.Values[i] = -0.5 * bench.Values[i+1]
		}
	}

	reg, err := AgainstBenchmark(net, bench, backtest.ForwardReturn)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, reg.Beta, 1e-9)
	// the last date has no next benchmark return
	assert.Equal(t, 39, reg.Observations)

	lagged, err := AgainstBenchmark(net, bench, backtest.LagWeights)
	require.NoError(t, err)
	assert.Less(t, lagged.R2, reg.R2)
}

func TestAgainstBenchmark_Errors(t *testing.T) {
	bench := benchSeries(2)
	_, err := AgainstBenchmark(bench, bench, backtest.LagWeights)
	assert.Error(t, err)

	flat := contracts.NewSeries(days(10))
	_, err = AgainstBenchmark(benchSeries(10), flat, backtest.LagWeights)
	assert.Error(t, err)
}

func TestRollingBeta(t *testing.T) {
	bench := benchSeries(10)
	net := contracts.NewSeries(bench.Dates)
	for i, b := range bench.Values {
		net.Values[i] = 3 * b
	}

	beta := RollingBeta(net, bench, backtest.LagWeights, 4)
	require.Equal(t, 7, beta.Len())
	assert.Equal(t, bench.Dates[3], beta.Dates[0])
	for _, v := range beta.Values {
		assert.InDelta(t, 3, v, 1e-9)
	}

	assert.Equal(t, 0, RollingBeta(net, bench, backtest.LagWeights, 1).Len())
}

func TestAnalyzer_WithBenchmark(t *testing.T) {
	res := runTwoAsset(t, backtest.LagWeights, nil)
	bench := contracts.NewSeries(res.Dates)
	copy(bench.Values, []float64{0.01, -0.02, 0.015})

	report, err := NewAnalyzer(logger.Nop()).Analyze(res, Options{Benchmark: bench, RollingBetaWindow: 2})
	require.NoError(t, err)
	require.NotNil(t, report.Benchmark)
	assert.Equal(t, 3, report.Benchmark.Observations)
	require.NotNil(t, report.RollingBeta)
	assert.Equal(t, 2, report.RollingBeta.Len())
}
