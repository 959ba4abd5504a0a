package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/external/wikipedia"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// ConstituentRefresher re-fetches index members into the cache
type ConstituentRefresher interface {
	Refresh(ctx context.Context) ([]wikipedia.Constituent, error)
}

// UniverseJob refreshes the cached S&P 500 constituents daily
// ⭐ SSOT: 유니버스 구성종목 갱신 스케줄은 이 Job에서만
type UniverseJob struct {
	refresher ConstituentRefresher
	logger    *logger.Logger

	mu      sync.Mutex
	count   int
	sectors int
}

// NewUniverseJob creates a new universe job
func NewUniverseJob(refresher ConstituentRefresher, log *logger.Logger) *UniverseJob {
	return &UniverseJob{
		refresher: refresher,
		logger:    log,
	}
}

// Name returns the job name
func (j *UniverseJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (every day at 6 AM, before any backtest)
func (j *UniverseJob) Schedule() string {
	return "0 0 6 * * *"
}

// Run executes the constituent refresh
func (j *UniverseJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled universe refresh")

	constituents, err := j.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh constituents: %w", err)
	}
	if len(constituents) == 0 {
		return fmt.Errorf("refresh constituents: empty table")
	}

	sectors := make(map[string]struct{})
	for _, c := range constituents {
		sectors[c.Sector] = struct{}{}
	}

	j.mu.Lock()
	j.count, j.sectors = len(constituents), len(sectors)
	j.mu.Unlock()

	j.logger.WithFields(map[string]interface{}{
		"count":   len(constituents),
		"sectors": len(sectors),
	}).Info("Universe refreshed successfully")

	return nil
}

// Summary describes the last refresh
func (j *UniverseJob) Summary() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return fmt.Sprintf("%d constituents in %d sectors", j.count, j.sectors)
}
