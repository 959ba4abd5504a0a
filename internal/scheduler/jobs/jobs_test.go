package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/external/wikipedia"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

type stubRunner struct {
	got brain.RunConfig
	err error
}

func (r *stubRunner) Run(_ context.Context, rc brain.RunConfig) (*brain.RunResult, error) {
	r.got = rc
	if r.err != nil {
		return nil, r.err
	}
	return &brain.RunResult{
		RunID:      "run-1",
		StrategyID: rc.Strategy.Meta.StrategyID,
		Summary: backtest.Summary{
			EndDate:    time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
			TotalNet:   0.084,
			TotalCosts: 0.0031,
		},
	}, nil
}

func TestBacktestJob_Run(t *testing.T) {
	runner := &stubRunner{}
	job := NewBacktestJob("../../../configs/momentum.yaml", "", runner, logger.Nop())

	assert.Equal(t, DefaultBacktestSchedule, job.Schedule())
	assert.Nil(t, job.Last())
	assert.Empty(t, job.Summary())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "2024-06-28 net=8.40% costs=0.31%", job.Summary())
	assert.Equal(t, "mom_12_1_top_bottom", runner.got.Strategy.Meta.StrategyID)
	assert.Len(t, runner.got.ConfigHash, 64)
	require.NotNil(t, job.Last())
	assert.Equal(t, "run-1", job.Last().RunID)
}

func TestBacktestJob_Errors(t *testing.T) {
	job := NewBacktestJob("missing.yaml", "@hourly", &stubRunner{}, logger.Nop())
	assert.Equal(t, "@hourly", job.Schedule())
	assert.Error(t, job.Run(context.Background()))

	failing := &stubRunner{err: errors.New("no data")}
	job = NewBacktestJob("../../../configs/momentum.yaml", "", failing, logger.Nop())
	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "no data")
	assert.Nil(t, job.Last())
}

type stubRefresher struct {
	out []wikipedia.Constituent
	err error
}

func (s stubRefresher) Refresh(context.Context) ([]wikipedia.Constituent, error) {
	return s.out, s.err
}

func TestUniverseJob_Run(t *testing.T) {
	ok := stubRefresher{out: []wikipedia.Constituent{
		{Symbol: "AAPL", Sector: "Information Technology"},
		{Symbol: "XOM", Sector: "Energy"},
	}}
	job := NewUniverseJob(ok, logger.Nop())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "2 constituents in 2 sectors", job.Summary())

	assert.Error(t, NewUniverseJob(stubRefresher{}, logger.Nop()).Run(context.Background()))
	assert.Error(t, NewUniverseJob(stubRefresher{err: errors.New("503")}, logger.Nop()).Run(context.Background()))
}
