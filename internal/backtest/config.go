package backtest

import (
	"fmt"
	"strings"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// Alignment decides which return a decision-date weight earns
type Alignment string

const (
	// LagWeights holds weights decided on t from t+1 on: w[t-1] * r[t]
	LagWeights Alignment = "LAG_WEIGHTS"
	// ForwardReturn books the next period's return on the decision date: w[t] * r[t+1]
	ForwardReturn Alignment = "FORWARD_RETURN"
)

// HoldingFill decides what the book holds between rebalance dates
type HoldingFill string

const (
	// FillForward keeps the last target weights until the next rebalance
	FillForward HoldingFill = "FORWARD"
	// FillZero is flat between rebalance dates
	FillZero HoldingFill = "ZERO"
)

// DefaultMaxFillDays caps how many consecutive missing prices are forward-filled
const DefaultMaxFillDays = 5

// Config holds backtest engine configuration
// ⭐ SSOT: 엔진 정렬 정책/리밸런싱 주기 설정
type Config struct {
	Frequency   calendar.Frequency
	Alignment   Alignment
	HoldingFill HoldingFill
	MaxFillDays int // 0 disables price forward-fill
}

// DefaultConfig returns the month-end, lagged-weight configuration
func DefaultConfig() Config {
	return Config{
		Frequency:   calendar.MonthEnd,
		Alignment:   LagWeights,
		HoldingFill: FillForward,
		MaxFillDays: DefaultMaxFillDays,
	}
}

// ParseAlignment normalizes an alignment policy name
func ParseAlignment(s string) (Alignment, error) {
	a := Alignment(strings.ToUpper(strings.TrimSpace(s)))
	if a != LagWeights && a != ForwardReturn {
		return "", fmt.Errorf("%w: unknown alignment policy %q", contracts.ErrInvalidConfiguration, s)
	}
	return a, nil
}

// ParseHoldingFill normalizes a holding fill policy name
func ParseHoldingFill(s string) (HoldingFill, error) {
	f := HoldingFill(strings.ToUpper(strings.TrimSpace(s)))
	if f != FillForward && f != FillZero {
		return "", fmt.Errorf("%w: unknown holding fill policy %q", contracts.ErrInvalidConfiguration, s)
	}
	return f, nil
}

// Validate rejects unknown policies before any matrix work
func (c Config) Validate() error {
	if !c.Frequency.Valid() {
		return fmt.Errorf("%w: unknown rebalance frequency %q", contracts.ErrInvalidConfiguration, c.Frequency)
	}
	if _, err := ParseAlignment(string(c.Alignment)); err != nil {
		return err
	}
	if _, err := ParseHoldingFill(string(c.HoldingFill)); err != nil {
		return err
	}
	if c.MaxFillDays < 0 {
		return fmt.Errorf("%w: max fill days must be >= 0, got %d", contracts.ErrInvalidConfiguration, c.MaxFillDays)
	}
	return nil
}
