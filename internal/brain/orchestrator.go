package brain

import (
	"context"
	"fmt"
	"time"

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

// ProviderFactory opens the market data source a strategy names
type ProviderFactory func(source, path string) (s0_data.Provider, error)

// Orchestrator coordinates load → quality → universe → engine → analysis
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	providers ProviderFactory
	gate      *quality.Gate
	universe  *s1_universe.Builder
	engine    *backtest.Engine
	analyzer  *audit.Analyzer
	metrics   *metrics.Registry
	logger    *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	providers ProviderFactory,
	gate *quality.Gate,
	universe *s1_universe.Builder,
	engine *backtest.Engine,
	analyzer *audit.Analyzer,
	m *metrics.Registry,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		gate:      gate,
		universe:  universe,
		engine:    engine,
		analyzer:  analyzer,
		metrics:   m,
		logger:    log,
	}
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Strategy     *strategyconfig.Config
	ConfigHash   string
	SkipAnalysis bool
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	RunID           string                   `json:"run_id"`
	StrategyID      string                   `json:"strategy_id"`
	ConfigHash      string                   `json:"config_hash"`
	CompletedStages []string                 `json:"completed_stages"`
	Quality         *quality.Report          `json:"quality"`
	Universe        *contracts.Universe      `json:"universe"`
	Backtest        *backtest.Result         `json:"backtest"`
	Summary         backtest.Summary         `json:"summary"`
	Performance     *audit.PerformanceReport `json:"performance,omitempty"`
	Duration        time.Duration            `json:"duration"`
}

// SweepOutcome is one variant of a sweep with its analysis
type SweepOutcome struct {
	Name        string                   `json:"name"`
	Summary     backtest.Summary         `json:"summary"`
	Performance *audit.PerformanceReport `json:"performance,omitempty"`
}

// prepared is everything loaded before the engine runs
type prepared struct {
	inputs    backtest.Inputs
	benchmark *contracts.Series
	quality   *quality.Report
	universe  *contracts.Universe
}

// Run executes one strategy end to end
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*RunResult, error) {
	startTime := time.Now()
	sc := rc.Strategy

	result := &RunResult{
		StrategyID:      sc.Meta.StrategyID,
		ConfigHash:      rc.ConfigHash,
		CompletedStages: make([]string, 0, 4),
	}

	log := o.logger.WithStrategy(sc.Meta.StrategyID, rc.ConfigHash)
	log.WithFields(map[string]interface{}{
		"source": sc.Data.Source,
		"path":   sc.Data.Path,
	}).Info("Starting pipeline run")

	cfg, stages, err := backtest.FromStrategy(sc)
	if err != nil {
		return result, err
	}

	p, err := o.prepare(ctx, sc)
	if err != nil {
		return result, err
	}
	result.Quality = p.quality
	result.Universe = p.universe
	result.CompletedStages = append(result.CompletedStages, "data", "universe")

	res, err := o.engine.Run(ctx, cfg, p.inputs, stages)
	if err != nil {
		return result, fmt.Errorf("backtest: %w", err)
	}
	result.RunID = res.RunID
	result.Backtest = res
	result.Summary = res.Summarize()
	result.CompletedStages = append(result.CompletedStages, "backtest")
	o.metrics.SetNetReturn(sc.Meta.StrategyID, result.Summary.TotalNet)

	if !rc.SkipAnalysis {
		report, err := o.analyze(res, sc, p.benchmark)
		if err != nil {
			return result, err
		}
		result.Performance = report
		result.CompletedStages = append(result.CompletedStages, "analysis")
	}

	result.Duration = time.Since(startTime)
	log.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"stages":    result.CompletedStages,
		"total_net": result.Summary.TotalNet,
		"duration":  result.Duration,
	}).Info("Pipeline run completed")

	return result, nil
}

// Sweep runs the strategy once per cost level in sweep.cost_bps over shared inputs
func (o *Orchestrator) Sweep(ctx context.Context, rc RunConfig, parallelism int) ([]SweepOutcome, error) {
	sc := rc.Strategy
	if len(sc.Sweep.CostBps) == 0 {
		return nil, fmt.Errorf("%w: sweep.cost_bps is empty", contracts.ErrInvalidConfiguration)
	}

	cfg, stages, err := backtest.FromStrategy(sc)
	if err != nil {
		return nil, err
	}
	variants, err := backtest.CostVariants(cfg, stages, sc.Sweep.CostBps)
	if err != nil {
		return nil, err
	}

	p, err := o.prepare(ctx, sc)
	if err != nil {
		return nil, err
	}

	runs, err := o.engine.Sweep(ctx, p.inputs, variants, parallelism)
	if err != nil {
		return nil, err
	}

	out := make([]SweepOutcome, len(runs))
	for i, r := range runs {
		out[i] = SweepOutcome{Name: r.Variant.Name, Summary: r.Result.Summarize()}
		if rc.SkipAnalysis {
			continue
		}
		if out[i].Performance, err = o.analyze(r.Result, sc, p.benchmark); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// prepare loads market data, checks it and builds the universe
func (o *Orchestrator) prepare(ctx context.Context, sc *strategyconfig.Config) (*prepared, error) {
	provider, err := o.providers(sc.Data.Source, sc.Data.Path)
	if err != nil {
		return nil, err
	}

	req, err := Request(sc)
	if err != nil {
		return nil, err
	}

	md, err := provider.Load(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load market data: %w", err)
	}

	ub, err := o.universe.Build(ctx, s1_universe.Config{
		Kind:        sc.Universe.Kind,
		Instruments: sc.Universe.Instruments,
		Exclude:     sc.Universe.Exclude,
	}, md.Prices.Columns, md.Universe, md.Sectors)
	if err != nil {
		return nil, fmt.Errorf("build universe: %w", err)
	}

	sectors := md.Sectors
	if sectors == nil && ub.Sectors != nil {
		sectors = s1_universe.SectorLabels(ub.Sectors, md.Prices.Dates)
	}

	return &prepared{
		inputs: backtest.Inputs{
			Prices:   md.Prices,
			Returns:  md.Returns,
			Sectors:  sectors,
			Universe: ub.Universe,
		},
		benchmark: md.Benchmark,
		quality:   o.gate.Check(md.Prices, sectors),
		universe:  ub.Universe,
	}, nil
}

func (o *Orchestrator) analyze(res *backtest.Result, sc *strategyconfig.Config, benchmark *contracts.Series) (*audit.PerformanceReport, error) {
	report, err := o.analyzer.Analyze(res, audit.Options{
		RiskFree:          sc.Analytics.RiskFree,
		RollingBetaWindow: sc.Analytics.RollingBetaWindow,
		Benchmark:         benchmark,
		VaRConfidence:     sc.Analytics.VaRConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	return report, nil
}

// Request maps the strategy's data section to a provider request
func Request(sc *strategyconfig.Config) (s0_data.Request, error) {
	start, err := sc.Data.StartDate()
	if err != nil {
		return s0_data.Request{}, fmt.Errorf("%w: data.start: %v", contracts.ErrInvalidConfiguration, err)
	}
	end, err := sc.Data.EndDate()
	if err != nil {
		return s0_data.Request{}, fmt.Errorf("%w: data.end: %v", contracts.ErrInvalidConfiguration, err)
	}
	mode, err := s0_data.ParseReturnsMode(sc.Data.Returns)
	if err != nil {
		return s0_data.Request{}, err
	}

	req := s0_data.Request{
		Start:     start,
		End:       end,
		Benchmark: sc.Data.Benchmark,
		Returns:   mode,
	}
	if sc.Universe.Kind == strategyconfig.UniverseStatic {
		req.Instruments = sc.Universe.Instruments
	}
	return req, nil
}
