package strategyconfig

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match contracts.ErrInvalidConfiguration
func (e ValidationError) Unwrap() error {
	return contracts.ErrInvalidConfiguration
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var strategyIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if !strategyIDPattern.MatchString(cfg.Meta.StrategyID) {
		return ValidationError{"meta.strategy_id", "must be lowercase letters, digits, '_' or '-'"}
	}

	// === Data ===
	switch cfg.Data.Source {
	case "", "csv", "parquet", "postgres":
	default:
		return ValidationError{"data.source", "must be csv, parquet or postgres"}
	}
	start, err := cfg.Data.StartDate()
	if err != nil {
		return ValidationError{"data.start", "must be YYYY-MM-DD"}
	}
	end, err := cfg.Data.EndDate()
	if err != nil {
		return ValidationError{"data.end", "must be YYYY-MM-DD"}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return ValidationError{"data", "start must be before end"}
	}
	switch cfg.Data.Returns {
	case "close_to_close", "open_to_open", "supplied":
	default:
		return ValidationError{"data.returns", "must be close_to_close, open_to_open or supplied"}
	}

	// === Universe ===
	switch cfg.Universe.Kind {
	case UniverseAll, UniverseSP500:
	case UniverseStatic:
		if len(cfg.Universe.Instruments) == 0 {
			return ValidationError{"universe.instruments", "required when kind=static"}
		}
	default:
		return ValidationError{"universe.kind", "must be all, static or sp500"}
	}

	// === Rebalance / Alignment ===
	if _, err := calendar.ParseFrequency(cfg.Rebalance.Frequency); err != nil {
		return ValidationError{"rebalance.frequency", "must be DAILY or MONTH_END"}
	}
	switch strings.ToUpper(cfg.Alignment.Policy) {
	case "LAG_WEIGHTS", "FORWARD_RETURN":
	default:
		return ValidationError{"alignment.policy", "must be LAG_WEIGHTS or FORWARD_RETURN"}
	}
	switch strings.ToUpper(cfg.Alignment.HoldingFill) {
	case "FORWARD", "ZERO":
	default:
		return ValidationError{"alignment.holding_fill", "must be FORWARD or ZERO"}
	}
	if cfg.Prices.FillDays() < 0 {
		return ValidationError{"prices.max_fill_days", "must be >= 0"}
	}

	// === Signal ===
	switch cfg.Signal.Kind {
	case SignalCloseToClose, SignalMonthly:
	default:
		return ValidationError{"signal.kind", "must be close_to_close or monthly"}
	}
	if cfg.Signal.Lookback < 1 {
		return ValidationError{"signal.lookback", "must be >= 1"}
	}
	if cfg.Signal.Skip < 0 {
		return ValidationError{"signal.skip", "must be >= 0"}
	}

	// === Aggregation ===
	if err := validateAggregation(cfg.Aggregation); err != nil {
		return err
	}

	// === Costs ===
	if cfg.Costs.Bps < 0 {
		return ValidationError{"costs.bps", "must be >= 0"}
	}

	// === Analytics / Sweep ===
	if cfg.Analytics.RollingBetaWindow < 2 {
		return ValidationError{"analytics.rolling_beta_window", "must be >= 2"}
	}
	if c := cfg.Analytics.VaRConfidence; c <= 0.5 || c >= 1 {
		return ValidationError{"analytics.var_confidence", "must be in (0.5, 1)"}
	}
	for i, bps := range cfg.Sweep.CostBps {
		if bps < 0 {
			return ValidationError{fmt.Sprintf("sweep.cost_bps[%d]", i), "must be >= 0"}
		}
	}

	return nil
}

func validateAggregation(a Aggregation) error {
	countSet := a.TopN != nil || a.BottomN != nil
	pctSet := a.TopPct != nil || a.BottomPct != nil

	// top_n/bottom_n 과 top_pct/bottom_pct 는 상호 배타
	if countSet && pctSet {
		return ValidationError{"aggregation", "top_n/bottom_n and top_pct/bottom_pct are mutually exclusive"}
	}

	switch a.Kind {
	case AggTopBottomN:
		if pctSet {
			return ValidationError{"aggregation", "top_bottom_n takes top_n/bottom_n"}
		}
		top, bottom := intOr(a.TopN), intOr(a.BottomN)
		if top < 0 || bottom < 0 {
			return ValidationError{"aggregation.top_n", "top_n and bottom_n must be >= 0"}
		}
		if top+bottom == 0 {
			return ValidationError{"aggregation.top_n", "top_n and bottom_n are both zero"}
		}
	case AggSectorNeutralPct, AggLongOnlyPct:
		if countSet {
			return ValidationError{"aggregation", a.Kind + " takes top_pct/bottom_pct"}
		}
		top, bottom := floatOr(a.TopPct), floatOr(a.BottomPct)
		if a.Kind == AggLongOnlyPct && bottom != 0 {
			return ValidationError{"aggregation.bottom_pct", "long_only_pct has no short side"}
		}
		if err := validatePctRange(top, "aggregation.top_pct"); err != nil {
			return err
		}
		if err := validatePctRange(bottom, "aggregation.bottom_pct"); err != nil {
			return err
		}
		if top+bottom > 100 {
			return ValidationError{"aggregation", "top_pct + bottom_pct must not exceed 100"}
		}
		if top+bottom == 0 {
			return ValidationError{"aggregation.top_pct", "top_pct and bottom_pct are both zero"}
		}
	default:
		return ValidationError{"aggregation.kind", "must be top_bottom_n, sector_neutral_pct or long_only_pct"}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 스킵이 룩백 이상이면 신호가 오래된 구간만 봄
	if cfg.Signal.Skip >= cfg.Signal.Lookback {
		warnings = append(warnings, Warning{
			Code:    "SKIP_GE_LOOKBACK",
			Message: "signal.skip >= signal.lookback: 신호가 최근 구간을 전혀 반영하지 않음",
		})
	}

	if cfg.Costs.Bps == 0 {
		warnings = append(warnings, Warning{
			Code:    "ZERO_COST",
			Message: "costs.bps = 0: 순수익률이 총수익률과 같음",
		})
	}

	// 일별 리밸런싱 + 비용 → 회전율 폭증
	if strings.EqualFold(cfg.Rebalance.Frequency, string(calendar.Daily)) && cfg.Costs.Bps > 0 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_TURNOVER",
			Message: "DAILY 리밸런싱: 거래비용 증가 우려",
		})
	}

	if strings.EqualFold(cfg.Alignment.Policy, "FORWARD_RETURN") {
		warnings = append(warnings, Warning{
			Code:    "FORWARD_RETURN_POLICY",
			Message: "FORWARD_RETURN: 수익이 결정일에 기록됨 (LAG_WEIGHTS 대비 한 기간 앞당김)",
		})
	}

	if cfg.Prices.FillDays() == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_PRICE_FILL",
			Message: "prices.max_fill_days = 0: 결측 가격이 그대로 시그널 결측이 됨",
		})
	}

	if cfg.Aggregation.Kind == AggSectorNeutralPct && cfg.Data.Benchmark == "" {
		warnings = append(warnings, Warning{
			Code:    "NO_BENCHMARK",
			Message: "data.benchmark 미설정: 알파/베타 분석 생략",
		})
	}

	return warnings
}

// === Helper Functions ===

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// validatePctRange는 퍼센트 값이 0~100 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 100 {
		return ValidationError{field, "must be in range [0, 100]"}
	}
	return nil
}

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
