package s0_data

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/redis"
)

// Source names
const (
	SourceCSV      = "csv"
	SourceParquet  = "parquet"
	SourcePostgres = "postgres"
)

// Factory opens providers by source name, falling back to process defaults
type Factory struct {
	DefaultSource string
	DefaultDir    string
	Pool          *pgxpool.Pool // nil unless DATABASE_URL is set
	Cache         *redis.Cache  // nil or disabled = no caching
	CacheTTL      time.Duration
	Metrics       *metrics.Registry
	Logger        *logger.Logger
}

// Open returns the provider for source; empty source and path use the defaults
func (f *Factory) Open(source, path string) (Provider, error) {
	if source == "" {
		source = f.DefaultSource
	}
	if path == "" {
		path = f.DefaultDir
	}

	var p Provider
	switch source {
	case SourceCSV:
		p = NewCSVProvider(path, f.Logger)
	case SourceParquet:
		p = NewParquetProvider(path, f.Logger)
	case SourcePostgres:
		if f.Pool == nil {
			return nil, fmt.Errorf("%w: postgres source needs DATABASE_URL", contracts.ErrInvalidConfiguration)
		}
		p = NewPostgresProvider(f.Pool, f.Logger)
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", contracts.ErrInvalidConfiguration, source)
	}

	if f.Cache != nil && f.Cache.Enabled() {
		p = NewCachedProvider(p, f.Cache, f.CacheTTL, f.Logger).WithMetrics(f.Metrics)
	}
	return p, nil
}
