package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/portfolio"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s2_signals"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/selection"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func businessDays(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := from; len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

// synthPrices builds a deterministic panel with distinct drifts per instrument
func synthPrices(n int, cols []string) *contracts.Matrix {
	dates := businessDays(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), n)
	m := contracts.NewMatrix(dates, cols)
	for i := range dates {
		for j := range cols {
			drift := 0.0004 * float64(j-len(cols)/2)
			wiggle := 0.01 * math.Sin(float64(i)/3+float64(j))
			m.Set(i, j, 100*math.Pow(1+drift, float64(i))*(1+wiggle))
		}
	}
	return m
}

func constantScores(values ...float64) contracts.SignalFunc {
	return func(prices *contracts.Matrix) (*contracts.Matrix, error) {
		out := contracts.NewMatrix(prices.Dates, prices.Columns)
		for i := range out.Values {
			copy(out.Values[i], values)
		}
		return out, nil
	}
}

func momentumStages(t *testing.T, bps float64) Stages {
	t.Helper()
	sig, err := s2_signals.NewCloseToCloseMomentum(20, 5)
	require.NoError(t, err)
	agg, err := portfolio.NewTopBottomN(2, 2)
	require.NoError(t, err)
	cost, err := costs.NewLinearTurnover(bps)
	require.NoError(t, err)
	return Stages{
		Signal:    sig,
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: agg,
		Cost:      cost,
	}
}

func dailyConfig(policy Alignment) Config {
	cfg := DefaultConfig()
	cfg.Frequency = calendar.Daily
	cfg.Alignment = policy
	return cfg
}

func newTestEngine() *Engine {
	return NewEngine(logger.Nop())
}

func TestEngine_ScenarioABC(t *testing.T) {
	prices := synthPrices(5, []string{"A", "B", "C"})
	st := Stages{
		Signal:    constantScores(3, 1, 2),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{Bps: 0},
	}

	res, err := newTestEngine().Run(context.Background(), dailyConfig(LagWeights), Inputs{Prices: prices}, st)
	require.NoError(t, err)

	for i := range res.Dates {
		assert.Equal(t, []float64{1, 3, 2}, res.Ranks.Row(i))
		assert.Equal(t, []float64{1, -1, 0}, res.TargetWeights.Row(i))
	}
}

func TestEngine_AlignmentPolicies(t *testing.T) {
	dates := businessDays(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	prices := contracts.NewMatrix(dates, []string{"A", "B"})
	copy(prices.Row(0), []float64{100, 100})
	copy(prices.Row(1), []float64{110, 90})
	copy(prices.Row(2), []float64{121, 81})

	st := Stages{
		Signal:    constantScores(2, 1),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{Bps: 0},
	}

	tests := []struct {
		policy Alignment
		want   []float64
	}{
		// the first day's weights are not held until the second day
		{LagWeights, []float64{0, 0.2, 0.2}},
		// the last day has no next-period return
		{ForwardReturn, []float64{0.2, 0.2, 0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			res, err := newTestEngine().Run(context.Background(), dailyConfig(tt.policy), Inputs{Prices: prices}, st)
			require.NoError(t, err)
			for i, want := range tt.want {
				assert.InDelta(t, want, res.Gross.Values[i], 1e-12, "day %d", i)
			}
			assert.Equal(t, tt.policy, res.Config.Alignment)
		})
	}
}

func TestEngine_PolicyBLeadsPolicyAByOnePeriod(t *testing.T) {
	prices := synthPrices(120, []string{"A", "B", "C", "D", "E", "F"})
	cfg := DefaultConfig()

	st := momentumStages(t, 0)
	cfg.Alignment = LagWeights
	a, err := newTestEngine().Run(context.Background(), cfg, Inputs{Prices: prices}, st)
	require.NoError(t, err)

	cfg.Alignment = ForwardReturn
	b, err := newTestEngine().Run(context.Background(), cfg, Inputs{Prices: prices}, st)
	require.NoError(t, err)

	require.Equal(t, a.Dates, b.Dates)
	for i := 0; i+1 < len(a.Dates); i++ {
		assert.InDelta(t, a.Gross.Values[i+1], b.Gross.Values[i], 1e-12, "day %d", i)
	}
}

func TestEngine_NoLookAhead(t *testing.T) {
	prices := synthPrices(160, []string{"A", "B", "C", "D", "E", "F"})
	cfg := DefaultConfig()
	st := momentumStages(t, 10)

	base, err := newTestEngine().Run(context.Background(), cfg, Inputs{Prices: prices}, st)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(base.RebalanceDates), 3)

	decision := base.RebalanceDates[len(base.RebalanceDates)-2]
	cut := prices.RowIndex(decision)
	perturbed := prices.Clone()
	for i := cut + 1; i < perturbed.Rows(); i++ {
		for j := range perturbed.Columns {
			perturbed.Set(i, j, perturbed.At(i, j)*float64(1+5*j))
		}
	}

	moved, err := newTestEngine().Run(context.Background(), cfg, Inputs{Prices: perturbed}, st)
	require.NoError(t, err)

	for _, d := range base.RebalanceDates {
		if d.After(decision) {
			continue
		}
		row := prices.RowIndex(d)
		assert.Equal(t, base.TargetWeights.Row(row), moved.TargetWeights.Row(row), d.Format("2006-01-02"))
	}
}

func TestEngine_WeightsNormalized(t *testing.T) {
	prices := synthPrices(200, []string{"A", "B", "C", "D", "E", "F", "G"})
	res, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, momentumStages(t, 5))
	require.NoError(t, err)

	assert.NoError(t, portfolio.CheckNormalization(res.RebalanceWeights()))
	assert.NoError(t, portfolio.CheckNormalization(res.Holdings))
}

func TestEngine_EquityRoundTrip(t *testing.T) {
	prices := synthPrices(150, []string{"A", "B", "C", "D", "E"})
	res, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, momentumStages(t, 25))
	require.NoError(t, err)

	prev := 1.0
	for i, eq := range res.Equity.Values {
		assert.InDelta(t, res.Net.Values[i], eq/prev-1, 1e-12)
		assert.InDelta(t, res.Gross.Values[i]-res.Costs.Values[i], res.Net.Values[i], 1e-15)
		prev = eq
	}
	assert.Len(t, res.Gross.Values, len(res.Dates))
	assert.Len(t, res.Costs.Values, len(res.Dates))
	assert.Len(t, res.Equity.Values, len(res.Dates))
}

func TestEngine_CostOnRotation(t *testing.T) {
	prices := synthPrices(4, []string{"A", "B", "C"})
	rotate := contracts.ConstructFunc(func(ranks *contracts.Matrix, _ *contracts.LabelMatrix) (*contracts.Matrix, error) {
		w := contracts.NewMatrixFilled(ranks.Dates, ranks.Columns, 0)
		w.Set(0, 0, 1)
		for i := 1; i < w.Rows(); i++ {
			w.Set(i, 1, 1)
		}
		return w, nil
	})
	st := Stages{
		Signal:    constantScores(1, 2, 3),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: rotate,
		Cost:      &costs.LinearTurnover{Bps: 10},
	}

	res, err := newTestEngine().Run(context.Background(), dailyConfig(LagWeights), Inputs{Prices: prices}, st)
	require.NoError(t, err)

	assert.InDelta(t, 0.0005, res.Costs.Values[0], 1e-15)
	assert.InDelta(t, 0.001, res.Costs.Values[1], 1e-15)
	assert.Equal(t, 0.0, res.Costs.Values[2])
	assert.Equal(t, 0.0, res.Costs.Values[3])
}

func TestEngine_CostsOnlyOnRebalanceDates(t *testing.T) {
	prices := synthPrices(90, []string{"A", "B", "C", "D", "E"})
	res, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, momentumStages(t, 10))
	require.NoError(t, err)

	for i, d := range res.Dates {
		isRebal := false
		for _, r := range res.RebalanceDates {
			if r.Equal(d) {
				isRebal = true
			}
		}
		assert.GreaterOrEqual(t, res.Costs.Values[i], 0.0)
		if !isRebal {
			assert.Equal(t, 0.0, res.Costs.Values[i], d.Format("2006-01-02"))
		}
	}
}

func TestEngine_InvalidConfigurationFailsBeforeStages(t *testing.T) {
	called := false
	st := Stages{
		Signal: contracts.SignalFunc(func(p *contracts.Matrix) (*contracts.Matrix, error) {
			called = true
			return p, nil
		}),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{},
	}
	prices := synthPrices(10, []string{"A", "B"})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"frequency", Config{Frequency: "WEEKLY", Alignment: LagWeights, HoldingFill: FillForward}},
		{"alignment", Config{Frequency: calendar.Daily, Alignment: "T_PLUS_2", HoldingFill: FillForward}},
		{"fill", Config{Frequency: calendar.Daily, Alignment: LagWeights, HoldingFill: "HALF"}},
		{"fill days", Config{Frequency: calendar.Daily, Alignment: LagWeights, HoldingFill: FillForward, MaxFillDays: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEngine().Run(context.Background(), tt.cfg, Inputs{Prices: prices}, st)
			assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
			assert.False(t, called)
		})
	}

	_, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, Stages{})
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}

func TestEngine_EmptyIntersection(t *testing.T) {
	prices := synthPrices(30, []string{"A", "B"})
	st := momentumStages(t, 0)

	disjointCols := synthPrices(30, []string{"X", "Y"}).PctChange(1)
	_, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices, Returns: disjointCols}, st)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)

	later := contracts.NewMatrix([]time.Time{time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)}, []string{"A", "B"})
	_, err = newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices, Returns: later}, st)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)

	sectors := contracts.StaticLabels(prices.Dates, map[string]string{"Z": "Tech"})
	_, err = newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices, Sectors: sectors}, st)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)

	_, err = newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{}, st)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}

func TestEngine_EmptyUniverseIsDegenerate(t *testing.T) {
	prices := synthPrices(80, []string{"A", "B", "C", "D"})

	tests := []struct {
		name     string
		universe *contracts.Universe
	}{
		{"no overlap", contracts.NewStaticUniverse([]string{"Q"})},
		{"never a member", &contracts.Universe{Membership: contracts.NewMatrixFilled(prices.Dates, []string{"A", "B", "C", "D"}, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices, Universe: tt.universe}, momentumStages(t, 10))
			require.NoError(t, err)

			assert.True(t, res.Degenerate())
			assert.Equal(t, 0.0, res.RankCoverage.Sum())
			for i := range res.Dates {
				assert.Equal(t, 0.0, res.Gross.Values[i])
				assert.Equal(t, 0.0, res.Costs.Values[i])
			}
			assert.Equal(t, 1.0, res.FinalEquity())
			assert.Equal(t, len(res.RebalanceDates), res.Summarize().EmptyRebalance)
		})
	}
}

func TestEngine_MembershipMasksScores(t *testing.T) {
	prices := synthPrices(60, []string{"A", "B", "C"})
	joins := prices.Dates[50]

	// B joins the universe late: kept on the instrument axis, masked before
	membership := contracts.NewMatrixFilled([]time.Time{prices.Dates[0], joins}, []string{"A", "B", "C"}, 1)
	membership.Set(0, 1, 0)

	st := Stages{
		Signal:    constantScores(1, 3, 2),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{},
	}
	res, err := newTestEngine().Run(context.Background(), DefaultConfig(),
		Inputs{Prices: prices, Universe: &contracts.Universe{Membership: membership}}, st)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, res.TargetWeights.Columns)

	weightOf := func(row int, code string) float64 {
		return res.TargetWeights.At(row, res.TargetWeights.ColumnIndex(code))
	}

	checked := 0
	for _, d := range res.RebalanceDates {
		row := res.Ranks.RowIndex(d)
		b := res.Ranks.ColumnIndex("B")
		if d.Before(joins) {
			assert.True(t, math.IsNaN(res.Ranks.At(row, b)), d)
			assert.Equal(t, -1.0, weightOf(row, "A"))
			assert.Equal(t, 0.0, weightOf(row, "B"))
			assert.Equal(t, 1.0, weightOf(row, "C"))
			checked++
			continue
		}
		assert.Equal(t, 1.0, res.Ranks.At(row, b), d)
		assert.Equal(t, -1.0, weightOf(row, "A"))
		assert.Equal(t, 1.0, weightOf(row, "B"))
		assert.Equal(t, 0.0, weightOf(row, "C"))
	}
	assert.Equal(t, 2, checked)
}

func TestEngine_DelistedNameLeavesBookAfterFillCap(t *testing.T) {
	prices := synthPrices(60, []string{"A", "B", "C", "D"})
	delisted := 30
	for i := delisted; i < len(prices.Dates); i++ {
		prices.Set(i, 3, math.NaN())
	}
	capEnd := prices.Dates[delisted+DefaultMaxFillDays-1]

	// the signal keeps scoring D after its prices stop
	st := Stages{
		Signal:    constantScores(1, 2, 3, 4),
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: &portfolio.TopBottomN{TopN: 1, BottomN: 1},
		Cost:      &costs.LinearTurnover{},
	}
	res, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, st)
	require.NoError(t, err)

	d := res.TargetWeights.ColumnIndex("D")
	c := res.TargetWeights.ColumnIndex("C")
	before, after := 0, 0
	for _, date := range res.RebalanceDates {
		row := res.TargetWeights.RowIndex(date)
		if !date.After(capEnd) {
			assert.Equal(t, 1.0, res.TargetWeights.At(row, d), date)
			before++
			continue
		}
		assert.True(t, math.IsNaN(res.Ranks.At(row, d)), date)
		assert.Equal(t, 0.0, res.TargetWeights.At(row, d), date)
		assert.Equal(t, 1.0, res.TargetWeights.At(row, c), date)
		after++
	}
	assert.Equal(t, 1, before)
	assert.Equal(t, 2, after)
}

func TestEngine_HoldingFillZero(t *testing.T) {
	prices := synthPrices(70, []string{"A", "B", "C", "D"})
	cfg := DefaultConfig()
	cfg.HoldingFill = FillZero
	cfg.Alignment = ForwardReturn

	res, err := newTestEngine().Run(context.Background(), cfg, Inputs{Prices: prices}, momentumStages(t, 0))
	require.NoError(t, err)

	for i, d := range res.Dates {
		long, short := portfolio.SideSums(res.Holdings.Row(i))
		isRebal := res.TargetWeights.RowIndex(d) >= 0 && !math.IsNaN(res.TargetWeights.At(i, 0))
		if !isRebal {
			assert.Equal(t, 0.0, long)
			assert.Equal(t, 0.0, short)
		}
	}
}

func TestEngine_SectorAggregationNeedsSectors(t *testing.T) {
	prices := synthPrices(40, []string{"A", "B"})
	st := momentumStages(t, 0)
	st.Aggregate = &portfolio.SectorNeutralPercent{TopPct: 50, BottomPct: 50}

	_, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, st)
	assert.ErrorIs(t, err, contracts.ErrInvalidConfiguration)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().Run(ctx, DefaultConfig(), Inputs{Prices: synthPrices(30, []string{"A", "B"})}, momentumStages(t, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_WithMetrics(t *testing.T) {
	reg := metrics.New()
	engine := newTestEngine().WithMetrics(reg)

	_, err := engine.Run(context.Background(), DefaultConfig(), Inputs{Prices: synthPrices(60, []string{"A", "B", "C", "D"})}, momentumStages(t, 0))
	require.NoError(t, err)

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "backtester_stage_duration_seconds")
	assert.Contains(t, names, "backtester_runs_total")
}

func TestEngine_StageContractViolations(t *testing.T) {
	prices := synthPrices(60, []string{"A", "B", "C", "D"})

	shortRanks := contracts.RankFunc(func(scores *contracts.Matrix) (*contracts.Matrix, error) {
		return contracts.NewMatrix(scores.Dates[:1], scores.Columns), nil
	})
	negativeCost := contracts.CostFunc(func(w *contracts.Matrix) (*contracts.Series, error) {
		out := contracts.NewSeries(w.Dates)
		out.Values[0] = -0.001
		return out, nil
	})
	shortCost := contracts.CostFunc(func(w *contracts.Matrix) (*contracts.Series, error) {
		return contracts.NewSeries(nil), nil
	})

	tests := []struct {
		name   string
		modify func(st *Stages)
		errMsg string
	}{
		{"rank rows", func(st *Stages) { st.Ranker = shortRanks }, "rank stage returned"},
		{"negative cost", func(st *Stages) { st.Cost = negativeCost }, "negative cost"},
		{"cost rows", func(st *Stages) { st.Cost = shortCost }, "cost stage returned 0 rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := momentumStages(t, 10)
			tt.modify(&st)
			_, err := newTestEngine().Run(context.Background(), DefaultConfig(), Inputs{Prices: prices}, st)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
