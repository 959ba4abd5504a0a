package backtest

import (
	"fmt"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/portfolio"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s2_signals"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/selection"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
)

// FromStrategy builds the engine configuration and stages a strategy describes
// ⭐ SSOT: 전략 설정 → 엔진 스테이지 조립은 여기서만
func FromStrategy(sc *strategyconfig.Config) (Config, Stages, error) {
	cfg, err := EngineConfig(sc)
	if err != nil {
		return Config{}, Stages{}, err
	}

	signal, err := newSignal(sc.Signal)
	if err != nil {
		return Config{}, Stages{}, err
	}

	aggregate, err := newAggregation(sc.Aggregation)
	if err != nil {
		return Config{}, Stages{}, err
	}

	cost, err := costs.NewLinearTurnover(sc.Costs.Bps)
	if err != nil {
		return Config{}, Stages{}, err
	}

	return cfg, Stages{
		Signal:    signal,
		Ranker:    selection.NewCrossSectionalRanker(),
		Aggregate: aggregate,
		Cost:      cost,
	}, nil
}

// EngineConfig maps the strategy's schedule and alignment sections
func EngineConfig(sc *strategyconfig.Config) (Config, error) {
	freq, err := calendar.ParseFrequency(sc.Rebalance.Frequency)
	if err != nil {
		return Config{}, err
	}
	policy, err := ParseAlignment(sc.Alignment.Policy)
	if err != nil {
		return Config{}, err
	}
	fill, err := ParseHoldingFill(sc.Alignment.HoldingFill)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Frequency:   freq,
		Alignment:   policy,
		HoldingFill: fill,
		MaxFillDays: sc.Prices.FillDays(),
	}
	return cfg, cfg.Validate()
}

func newSignal(s strategyconfig.Signal) (contracts.SignalBuilder, error) {
	switch s.Kind {
	case strategyconfig.SignalCloseToClose:
		return s2_signals.NewCloseToCloseMomentum(s.Lookback, s.Skip)
	case strategyconfig.SignalMonthly:
		return s2_signals.NewMonthlyMomentum(s.Lookback, s.Skip)
	default:
		return nil, fmt.Errorf("%w: unknown signal kind %q", contracts.ErrInvalidConfiguration, s.Kind)
	}
}

func newAggregation(a strategyconfig.Aggregation) (contracts.PortfolioConstructor, error) {
	switch a.Kind {
	case strategyconfig.AggTopBottomN:
		top, bottom := a.Counts()
		return portfolio.NewTopBottomN(top, bottom)
	case strategyconfig.AggSectorNeutralPct:
		top, bottom := a.Percents()
		return portfolio.NewSectorNeutralPercent(top, bottom)
	case strategyconfig.AggLongOnlyPct:
		top, _ := a.Percents()
		return portfolio.NewLongOnlyPercent(top)
	default:
		return nil, fmt.Errorf("%w: unknown aggregation kind %q", contracts.ErrInvalidConfiguration, a.Kind)
	}
}
