package s1_universe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/external/wikipedia"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/redis"
)

// Universe kinds
const (
	KindAll    = "all"
	KindStatic = "static"
	KindSP500  = "sp500"
)

// Config holds universe filter criteria
type Config struct {
	Kind           string   `yaml:"kind"`
	Instruments    []string `yaml:"instruments"`     // static 구성종목
	Exclude        []string `yaml:"exclude"`         // 제외 종목
	ExcludeSectors []string `yaml:"exclude_sectors"` // 제외 섹터
}

// ConstituentSource lists index members with their sectors
type ConstituentSource interface {
	FetchSP500(ctx context.Context) ([]wikipedia.Constituent, error)
}

// Builder constructs the investable universe
type Builder struct {
	source ConstituentSource
	cache  *redis.Cache
	logger *logger.Logger
}

// NewBuilder creates a new Universe Builder; source and cache may be nil
func NewBuilder(source ConstituentSource, cache *redis.Cache, log *logger.Logger) *Builder {
	return &Builder{source: source, cache: cache, logger: log}
}

// Result is the universe plus any sector labels learned while building it
type Result struct {
	Universe *contracts.Universe
	Sectors  map[string]string // sp500 일 때 GICS 섹터, 그 외 nil
}

// Build constructs the investable universe
// ⭐ SSOT: S1 → 엔진 유니버스 생성
//
// available is every priced instrument; provided is the universe shipped
// with the market data, if any. A universe that ends up empty is returned as
// such: the engine treats it as a degenerate run.
func (b *Builder) Build(ctx context.Context, cfg Config, available []string, provided *contracts.Universe, sectors *contracts.LabelMatrix) (*Result, error) {
	res := &Result{}

	switch cfg.Kind {
	case "", KindAll:
		if provided != nil {
			res.Universe = cloneUniverse(provided)
		} else {
			res.Universe = contracts.NewStaticUniverse(available)
		}

	case KindStatic:
		if len(cfg.Instruments) == 0 {
			return nil, fmt.Errorf("%w: static universe needs instruments", contracts.ErrInvalidConfiguration)
		}
		res.Universe = contracts.NewStaticUniverse(cfg.Instruments)

	case KindSP500:
		constituents, err := b.constituents(ctx)
		if err != nil {
			return nil, err
		}
		res.Universe = contracts.NewStaticUniverse(wikipedia.Symbols(constituents))
		res.Sectors = wikipedia.Sectors(constituents)
		for _, code := range available {
			if _, ok := res.Sectors[code]; !ok {
				res.Universe.Excluded[code] = "S&P 500 미편입"
			}
		}

	default:
		return nil, fmt.Errorf("%w: unknown universe kind %q", contracts.ErrInvalidConfiguration, cfg.Kind)
	}

	if res.Universe.Excluded == nil {
		res.Universe.Excluded = make(map[string]string)
	}

	latest := latestSectors(sectors, res.Sectors)
	for _, code := range res.Universe.Codes() {
		if reason := checkExclusion(cfg, code, latest[code]); reason != "" {
			res.Universe.Excluded[code] = reason
		}
	}
	applyExclusions(res.Universe)

	b.logger.WithFields(map[string]interface{}{
		"kind":     kindOrAll(cfg.Kind),
		"eligible": res.Universe.Count(),
		"excluded": len(res.Universe.Excluded),
	}).Info("Universe built")

	return res, nil
}

// constituents fetches S&P 500 members, through the cache when enabled
func (b *Builder) constituents(ctx context.Context) ([]wikipedia.Constituent, error) {
	if b.source == nil {
		return nil, fmt.Errorf("%w: sp500 universe needs a constituent source", contracts.ErrInvalidConfiguration)
	}

	var cached []wikipedia.Constituent
	if b.cache != nil {
		found, err := b.cache.Get(ctx, redis.ConstituentsKey(KindSP500), &cached)
		if err != nil {
			b.logger.WithError(err).Warn("Constituents cache read failed")
		}
		if found {
			return cached, nil
		}
	}

	constituents, err := b.source.FetchSP500(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sp500 constituents: %w", err)
	}
	if b.cache != nil {
		if err := b.cache.Set(ctx, redis.ConstituentsKey(KindSP500), constituents, redis.TTLDaily); err != nil {
			b.logger.WithError(err).Warn("Constituents cache write failed")
		}
	}
	return constituents, nil
}

// Refresh fetches S&P 500 members from the source and overwrites the cache
func (b *Builder) Refresh(ctx context.Context) ([]wikipedia.Constituent, error) {
	if b.source == nil {
		return nil, fmt.Errorf("%w: sp500 universe needs a constituent source", contracts.ErrInvalidConfiguration)
	}

	constituents, err := b.source.FetchSP500(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sp500 constituents: %w", err)
	}
	if b.cache != nil {
		if err := b.cache.Set(ctx, redis.ConstituentsKey(KindSP500), constituents, redis.TTLDaily); err != nil {
			return constituents, fmt.Errorf("cache constituents: %w", err)
		}
	}

	b.logger.WithField("count", len(constituents)).Info("S&P 500 constituents refreshed")
	return constituents, nil
}

// checkExclusion checks if an instrument should be excluded and returns the reason
func checkExclusion(cfg Config, code, sector string) string {
	for _, ex := range cfg.Exclude {
		if ex == code {
			return "설정 제외"
		}
	}
	for _, s := range cfg.ExcludeSectors {
		if sector != "" && s == sector {
			return fmt.Sprintf("제외 섹터 (%s)", s)
		}
	}
	return ""
}

// applyExclusions removes excluded codes from the static set and membership grid
func applyExclusions(u *contracts.Universe) {
	if len(u.Excluded) == 0 {
		return
	}

	if len(u.Instruments) > 0 {
		kept := u.Instruments[:0]
		for _, code := range u.Instruments {
			if _, out := u.Excluded[code]; !out {
				kept = append(kept, code)
			}
		}
		u.Instruments = kept
	}
	if u.Membership != nil {
		u.Membership = u.Membership.Mask(func(_, j int) bool {
			_, out := u.Excluded[u.Membership.Columns[j]]
			return !out
		})
	}
}

func latestSectors(sectors *contracts.LabelMatrix, fallback map[string]string) map[string]string {
	out := make(map[string]string, len(fallback))
	for code, s := range fallback {
		out[code] = s
	}
	if sectors == nil || sectors.Rows() == 0 {
		return out
	}
	last := sectors.Row(sectors.Rows() - 1)
	for j, code := range sectors.Columns {
		if last[j] != "" {
			out[code] = last[j]
		}
	}
	return out
}

func cloneUniverse(u *contracts.Universe) *contracts.Universe {
	out := &contracts.Universe{
		Instruments: append([]string(nil), u.Instruments...),
		Excluded:    make(map[string]string, len(u.Excluded)),
	}
	if u.Membership != nil {
		out.Membership = u.Membership.Clone()
	}
	for k, v := range u.Excluded {
		out.Excluded[k] = v
	}
	return out
}

// SectorLabels converts a symbol → sector map into labels on dates
func SectorLabels(sectors map[string]string, dates []time.Time) *contracts.LabelMatrix {
	return contracts.StaticLabels(dates, sectors)
}

// ExcludedCodes returns excluded codes in order
func ExcludedCodes(u *contracts.Universe) []string {
	codes := make([]string, 0, len(u.Excluded))
	for code := range u.Excluded {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func kindOrAll(kind string) string {
	if kind == "" {
		return KindAll
	}
	return kind
}
