package commands

import (
	"context"
	"fmt"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/audit"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/external/wikipedia"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data/quality"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s1_universe"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/config"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/database"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/httputil"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/redis"
)

const cachePrefix = "backtester"

// deps holds everything a command wires from the environment
type deps struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB // nil without DATABASE_URL
	redis   *redis.Client
	cache   *redis.Cache
	limiter *redis.RateLimiter
	metrics *metrics.Registry

	providers    *s0_data.Factory
	universe     *s1_universe.Builder
	orchestrator *brain.Orchestrator
}

// newDeps loads config and connects the optional stores
func newDeps(ctx context.Context) (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dataSource != "" {
		cfg.DataSource = dataSource
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	d := &deps{cfg: cfg, log: log}

	// 3. Connect to database (optional)
	if cfg.Database.Enabled() {
		if d.db, err = database.New(ctx, cfg); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Debug("Connected to database")
	}

	// 4. Connect to redis (optional)
	if d.redis, err = redis.New(ctx, cfg); err != nil {
		d.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	d.cache = redis.NewCache(d.redis, cachePrefix)
	d.limiter = redis.NewRateLimiter(d.redis, cachePrefix)

	if cfg.MetricsEnabled {
		d.metrics = metrics.New()
	}

	// 5. External clients
	httpClient := httputil.New(cfg, log)
	if d.redis.Enabled() {
		httpClient = httpClient.WithRateLimiter(d.limiter, redis.WikipediaRateLimit)
	}
	wiki := wikipedia.NewClient(httpClient, log, cfg.Sources.SP500URL)

	// 6. Pipeline
	d.providers = &s0_data.Factory{
		DefaultSource: cfg.DataSource,
		DefaultDir:    cfg.DataDir,
		Cache:         d.cache,
		CacheTTL:      cfg.Redis.CacheTTL,
		Metrics:       d.metrics,
		Logger:        log,
	}
	if d.db != nil {
		d.providers.Pool = d.db.Pool
	}
	d.universe = s1_universe.NewBuilder(wiki, d.cache, log)
	d.orchestrator = brain.NewOrchestrator(
		d.providers.Open,
		quality.NewGate(quality.DefaultConfig(), log),
		d.universe,
		backtest.NewEngine(log).WithMetrics(d.metrics),
		audit.NewAnalyzer(log),
		d.metrics,
		log,
	)

	return d, nil
}

// Close releases database and redis connections
func (d *deps) Close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.WithError(err).Warn("Failed to close redis")
		}
	}
}

// strategyPath returns the first argument or the configured default
func (d *deps) strategyPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return d.cfg.StrategyConfig
}
