package brain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/audit"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data/quality"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s1_universe"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

const sampleDir = "../../testdata/sample"

func newTestOrchestrator() *Orchestrator {
	log := logger.Nop()
	factory := &s0_data.Factory{DefaultSource: s0_data.SourceCSV, Logger: log}
	return NewOrchestrator(
		factory.Open,
		quality.NewGate(quality.DefaultConfig(), log),
		s1_universe.NewBuilder(nil, nil, log),
		backtest.NewEngine(log),
		audit.NewAnalyzer(log),
		metrics.New(),
		log,
	)
}

func loadStrategy(t *testing.T, name string) *strategyconfig.Config {
	t.Helper()
	sc, _, err := strategyconfig.Load("../../configs/" + name)
	require.NoError(t, err)
	sc.Data.Path = sampleDir
	return sc
}

func TestOrchestrator_Run(t *testing.T) {
	sc := loadStrategy(t, "momentum.yaml")

	res, err := newTestOrchestrator().Run(context.Background(), RunConfig{Strategy: sc, ConfigHash: "abc"})
	require.NoError(t, err)

	assert.Equal(t, []string{"data", "universe", "backtest", "analysis"}, res.CompletedStages)
	assert.Equal(t, "mom_12_1_top_bottom", res.StrategyID)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 10, res.Universe.Count())
	assert.False(t, res.Backtest.Degenerate())

	require.NotNil(t, res.Performance)
	require.NotNil(t, res.Performance.Benchmark)
	assert.Greater(t, res.Performance.Benchmark.Observations, 100)
	assert.InDelta(t, res.Summary.TotalCosts, res.Performance.TotalCosts, 1e-12)

	// the PFE gap is shorter than the fill cap
	assert.Empty(t, res.Quality.StaleRuns)
}

func TestOrchestrator_SectorNeutral(t *testing.T) {
	sc := loadStrategy(t, "sector_neutral.yaml")

	res, err := newTestOrchestrator().Run(context.Background(), RunConfig{Strategy: sc})
	require.NoError(t, err)

	require.NotNil(t, res.Performance.Sectors)
	assert.InDelta(t, 0, res.Performance.Sectors.Residual, 1e-9)
	assert.Len(t, res.Performance.Sectors.Contribution, 4)
	assert.True(t, res.Quality.Passed())
}

func TestOrchestrator_Sweep(t *testing.T) {
	sc := loadStrategy(t, "momentum.yaml")

	out, err := newTestOrchestrator().Sweep(context.Background(), RunConfig{Strategy: sc, SkipAnalysis: true}, 3)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, "cost_0bps", out[0].Name)
	assert.Equal(t, 0.0, out[0].Summary.TotalCosts)
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i].Summary.TotalCosts, out[i-1].Summary.TotalCosts)
		assert.Equal(t, out[0].Summary.TotalGross, out[i].Summary.TotalGross)
		assert.Nil(t, out[i].Performance)
	}
}

func TestOrchestrator_SweepNeedsGrid(t *testing.T) {
	sc := loadStrategy(t, "momentum.yaml")
	sc.Sweep.CostBps = nil

	_, err := newTestOrchestrator().Sweep(context.Background(), RunConfig{Strategy: sc}, 1)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}

func TestOrchestrator_MissingData(t *testing.T) {
	sc := loadStrategy(t, "momentum.yaml")
	sc.Data.Path = t.TempDir()

	_, err := newTestOrchestrator().Run(context.Background(), RunConfig{Strategy: sc})
	assert.Error(t, err)
}

func TestRequest(t *testing.T) {
	sc := loadStrategy(t, "momentum.yaml")
	sc.Data.Start = "2021-06-01"
	sc.Universe.Kind = strategyconfig.UniverseStatic
	sc.Universe.Instruments = []string{"AAPL"}

	req, err := Request(sc)
	require.NoError(t, err)
	assert.Equal(t, 2021, req.Start.Year())
	assert.True(t, req.End.IsZero())
	assert.Equal(t, []string{"AAPL"}, req.Instruments)
	assert.Equal(t, "SPY", req.Benchmark)
	assert.Equal(t, s0_data.ReturnsCloseToClose, req.Returns)

	sc.Data.End = "not-a-date"
	_, err = Request(sc)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}
