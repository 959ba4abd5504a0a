package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// Stages are the four pluggable steps of the pipeline
type Stages struct {
	Signal    contracts.SignalBuilder
	Ranker    contracts.Ranker
	Aggregate contracts.PortfolioConstructor
	Cost      contracts.CostModel
}

func (s Stages) validate() error {
	switch {
	case s.Signal == nil:
		return fmt.Errorf("%w: signal stage is required", contracts.ErrInvalidConfiguration)
	case s.Ranker == nil:
		return fmt.Errorf("%w: rank stage is required", contracts.ErrInvalidConfiguration)
	case s.Aggregate == nil:
		return fmt.Errorf("%w: aggregation stage is required", contracts.ErrInvalidConfiguration)
	case s.Cost == nil:
		return fmt.Errorf("%w: cost stage is required", contracts.ErrInvalidConfiguration)
	}
	return nil
}

// Engine runs backtesting simulations
// ⭐ SSOT: 백테스팅 실행은 여기서만
//
// An Engine keeps no state between runs; one instance may serve concurrent
// Run calls.
type Engine struct {
	logger  *logger.Logger
	metrics *metrics.Registry
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// WithMetrics attaches a Prometheus registry for stage timings
func (e *Engine) WithMetrics(m *metrics.Registry) *Engine {
	return &Engine{logger: e.logger, metrics: m}
}

// Run executes one backtest
//
// Stages: setup → schedule → signal → rank → aggregate → align/accumulate → finalize.
// ctx is only checked between stages; stage computations are not interruptible.
func (e *Engine) Run(ctx context.Context, cfg Config, in Inputs, st Stages) (result *Result, err error) {
	defer func() {
		n := 0
		if result != nil {
			n = len(result.RebalanceDates)
		}
		e.metrics.RunFinished(err, n)
	}()

	// Setup: reject bad configuration before touching any matrix
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := st.validate(); err != nil {
		return nil, err
	}

	result = &Result{
		RunID:   uuid.New().String(),
		Config:  cfg,
		Started: time.Now(),
	}
	log := e.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"frequency": cfg.Frequency,
		"alignment": cfg.Alignment,
		"fill":      cfg.HoldingFill,
	})

	started := time.Now()
	data, err := prepare(in, cfg.MaxFillDays)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage("setup", started)

	log.WithFields(map[string]interface{}{
		"dates":       len(data.dates),
		"instruments": len(data.columns),
		"start":       data.dates[0].Format("2006-01-02"),
		"end":         data.dates[len(data.dates)-1].Format("2006-01-02"),
	}).Info("Starting backtest")

	// Schedule
	started = time.Now()
	rebal, err := calendar.Resolve(data.dates, cfg.Frequency)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveStage("schedule", started)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Signal over the full daily index
	started = time.Now()
	scores, err := st.Signal.Build(data.prices)
	if err != nil {
		return nil, fmt.Errorf("signal stage: %w", err)
	}
	if !scores.SameAxes(data.prices) {
		return nil, fmt.Errorf("signal stage returned %dx%d, want %dx%d",
			scores.Rows(), scores.Cols(), data.prices.Rows(), data.prices.Cols())
	}
	// a score never outlives the capped price fill (delisted names drop out)
	scores = scores.Mask(func(i, j int) bool {
		if math.IsNaN(data.prices.At(i, j)) {
			return false
		}
		return data.member == nil || data.member[i][j]
	})
	e.metrics.ObserveStage("signal", started)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Rank on rebalance dates only
	started = time.Now()
	ranks, err := st.Ranker.Rank(scores.Reindex(rebal))
	if err != nil {
		return nil, fmt.Errorf("rank stage: %w", err)
	}
	if ranks.Rows() != len(rebal) {
		return nil, fmt.Errorf("rank stage returned %d rows, want %d", ranks.Rows(), len(rebal))
	}
	e.metrics.ObserveStage("rank", started)

	// Aggregate, then conform to the schedule with gaps as flat
	started = time.Now()
	var sectors *contracts.LabelMatrix
	if data.sectors != nil {
		sectors = data.sectors.AsOf(rebal)
	}
	raw, err := st.Aggregate.Construct(ranks, sectors)
	if err != nil {
		return nil, fmt.Errorf("aggregation stage: %w", err)
	}
	weights := raw.Reindex(rebal).SelectColumns(data.columns).FillNaN(0)
	e.metrics.ObserveStage("aggregate", started)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Align and accumulate
	started = time.Now()
	dense := densify(weights, data.dates, cfg.HoldingFill)
	held, realized, gross := accumulate(dense, data.returns, cfg.Alignment)

	cost, err := st.Cost.Cost(weights)
	if err != nil {
		return nil, fmt.Errorf("cost stage: %w", err)
	}
	if cost.Len() != weights.Rows() {
		return nil, fmt.Errorf("cost stage returned %d rows, want %d", cost.Len(), weights.Rows())
	}
	for i, c := range cost.Values {
		if c < 0 {
			return nil, fmt.Errorf("cost stage returned negative cost %v on %s", c, cost.Dates[i].Format("2006-01-02"))
		}
	}
	dailyCost := cost.Reindex(data.dates, 0)

	net := contracts.NewSeries(data.dates)
	for i := range net.Values {
		net.Values[i] = gross.Values[i] - dailyCost.Values[i]
	}
	e.metrics.ObserveStage("accumulate", started)

	// Finalize
	result.Dates = data.dates
	result.RebalanceDates = rebal
	result.Signal = scores
	result.Ranks = ranks.Reindex(data.dates)
	result.TargetWeights = weights.Reindex(data.dates)
	result.Holdings = held
	result.Realized = realized
	result.Sectors = data.sectors
	result.Gross = gross
	result.Costs = dailyCost
	result.Net = net
	result.Equity = compound(net)
	result.Turnover = costs.Turnover(weights).Reindex(data.dates, 0)
	result.RankCoverage = ranks.CountValid().Reindex(data.dates, 0)
	result.Duration = time.Since(result.Started)

	summary := result.Summarize()
	log.WithFields(map[string]interface{}{
		"rebalances":     summary.RebalanceCount,
		"total_net":      fmt.Sprintf("%.4f", summary.TotalNet),
		"total_costs":    fmt.Sprintf("%.6f", summary.TotalCosts),
		"total_turnover": fmt.Sprintf("%.2f", summary.TotalTurnover),
		"duration_ms":    result.Duration.Milliseconds(),
	}).Info("Backtest completed")

	if result.Degenerate() {
		log.Warn("Backtest never held a position; check universe and rank coverage")
	}

	return result, nil
}
