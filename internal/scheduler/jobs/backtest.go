package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// DefaultBacktestSchedule runs after the US close on weekdays (with seconds)
const DefaultBacktestSchedule = "0 30 17 * * 1-5"

// Runner executes one strategy run
type Runner interface {
	Run(ctx context.Context, rc brain.RunConfig) (*brain.RunResult, error)
}

// BacktestJob re-runs a strategy config on a schedule
// ⭐ SSOT: 정기 백테스트 재실행은 이 Job에서만
type BacktestJob struct {
	configPath string
	schedule   string
	runner     Runner
	logger     *logger.Logger

	mu   sync.RWMutex
	last *brain.RunResult
}

// NewBacktestJob creates a new backtest job; an empty schedule uses DefaultBacktestSchedule
func NewBacktestJob(configPath, schedule string, runner Runner, log *logger.Logger) *BacktestJob {
	if schedule == "" {
		schedule = DefaultBacktestSchedule
	}
	return &BacktestJob{
		configPath: configPath,
		schedule:   schedule,
		runner:     runner,
		logger:     log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "backtest:" + j.configPath
}

// Schedule returns the cron schedule
func (j *BacktestJob) Schedule() string {
	return j.schedule
}

// Run reloads the config so edits take effect on the next tick
func (j *BacktestJob) Run(ctx context.Context) error {
	sc, _, err := strategyconfig.Load(j.configPath)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}
	hash, err := strategyconfig.Hash(sc)
	if err != nil {
		return fmt.Errorf("hash strategy: %w", err)
	}

	res, err := j.runner.Run(ctx, brain.RunConfig{Strategy: sc, ConfigHash: hash})
	if err != nil {
		return fmt.Errorf("run %s: %w", sc.Meta.StrategyID, err)
	}

	j.mu.Lock()
	j.last = res
	j.mu.Unlock()

	fields := map[string]interface{}{
		"strategy_id": res.StrategyID,
		"config_hash": hash,
		"run_id":      res.RunID,
		"end_date":    res.Summary.EndDate.Format("2006-01-02"),
		"total_net":   res.Summary.TotalNet,
		"total_costs": res.Summary.TotalCosts,
	}
	if p := res.Performance; p != nil {
		fields["sharpe"] = p.Net.Sharpe
		fields["max_drawdown"] = p.Net.MaxDrawdown
	}
	j.logger.WithFields(fields).Info("Scheduled backtest completed")

	return nil
}

// Summary describes the last successful run
func (j *BacktestJob) Summary() string {
	res := j.Last()
	if res == nil {
		return ""
	}
	out := fmt.Sprintf("%s net=%.2f%% costs=%.2f%%", res.Summary.EndDate.Format("2006-01-02"),
		res.Summary.TotalNet*100, res.Summary.TotalCosts*100)
	if p := res.Performance; p != nil {
		out += fmt.Sprintf(" sharpe=%.2f", p.Net.Sharpe)
	}
	return out
}

// Last returns the most recent successful result, or nil
func (j *BacktestJob) Last() *brain.RunResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
