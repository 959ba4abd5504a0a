package s0_data

import (
	"context"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/metrics"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/redis"
)

// CachedProvider serves repeated requests from Redis before asking the wrapped provider
type CachedProvider struct {
	next    Provider
	cache   *redis.Cache
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *logger.Logger
}

// NewCachedProvider wraps next with a Redis panel cache
func NewCachedProvider(next Provider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = redis.TTLPanel
	}
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: log}
}

// WithMetrics records hits and misses
func (p *CachedProvider) WithMetrics(m *metrics.Registry) *CachedProvider {
	p.metrics = m
	return p
}

// Name implements Provider
func (p *CachedProvider) Name() string {
	return p.next.Name()
}

// Load implements Provider. Cache failures fall through to the wrapped provider.
func (p *CachedProvider) Load(ctx context.Context, req Request) (*MarketData, error) {
	if !p.cache.Enabled() {
		return p.next.Load(ctx, req)
	}

	key := p.key(req)

	var cached MarketData
	found, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Panel cache read failed")
	}
	p.metrics.CacheLookup(found)
	if found {
		p.logger.WithField("key", key).Debug("Panel cache hit")
		return &cached, nil
	}

	md, err := p.next.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, md, p.ttl); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Panel cache write failed")
	}
	return md, nil
}

// Located is implemented by providers that read from a filesystem location
type Located interface {
	Location() string
}

// key scopes the panel key to the wrapped provider's location
func (p *CachedProvider) key(req Request) string {
	location := ""
	if l, ok := p.next.(Located); ok {
		location = l.Location()
	}
	return redis.PanelKey(p.next.Name(), req.KeyAt(location))
}
