package s2_signals

import (
	"fmt"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// CloseToCloseMomentum scores each instrument by its trailing price return
// ⭐ SSOT: 일별 종가 모멘텀 계산은 여기서만
//
// score[t] = p[t-Skip] / p[t-Skip-Lookback] - 1, forward-filled.
// Rows without enough history are NaN and therefore unranked.
type CloseToCloseMomentum struct {
	Lookback int // 기본: 252
	Skip     int // 기본: 21 (최근 1개월 제외)
}

// NewCloseToCloseMomentum validates parameters and creates the signal
func NewCloseToCloseMomentum(lookback, skip int) (*CloseToCloseMomentum, error) {
	s := &CloseToCloseMomentum{Lookback: lookback, Skip: skip}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the window parameters
func (s *CloseToCloseMomentum) Validate() error {
	if s.Lookback < 1 {
		return fmt.Errorf("%w: momentum lookback must be >= 1, got %d", contracts.ErrInvalidConfiguration, s.Lookback)
	}
	if s.Skip < 0 {
		return fmt.Errorf("%w: momentum skip must be >= 0, got %d", contracts.ErrInvalidConfiguration, s.Skip)
	}
	return nil
}

// Build implements contracts.SignalBuilder
func (s *CloseToCloseMomentum) Build(prices *contracts.Matrix) (*contracts.Matrix, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return prices.PctChange(s.Lookback).Shift(s.Skip).FillForward(0), nil
}

// MonthlyMomentum scores instruments on month-end closes
// ⭐ SSOT: 월말 기준 모멘텀 (12-1 등) 계산은 여기서만
//
// Month-end closes are compared LookbackMonths apart and shifted by
// SkipMonths. The monthly score is carried onto every daily date after the
// month end it was computed on, then lagged one more trading day.
type MonthlyMomentum struct {
	LookbackMonths int // 기본: 12
	SkipMonths     int // 기본: 1
}

// NewMonthlyMomentum validates parameters and creates the signal
func NewMonthlyMomentum(lookbackMonths, skipMonths int) (*MonthlyMomentum, error) {
	s := &MonthlyMomentum{LookbackMonths: lookbackMonths, SkipMonths: skipMonths}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the window parameters
func (s *MonthlyMomentum) Validate() error {
	if s.LookbackMonths < 1 {
		return fmt.Errorf("%w: monthly lookback must be >= 1, got %d", contracts.ErrInvalidConfiguration, s.LookbackMonths)
	}
	if s.SkipMonths < 0 {
		return fmt.Errorf("%w: monthly skip must be >= 0, got %d", contracts.ErrInvalidConfiguration, s.SkipMonths)
	}
	return nil
}

// Build implements contracts.SignalBuilder
func (s *MonthlyMomentum) Build(prices *contracts.Matrix) (*contracts.Matrix, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	monthEnds, err := calendar.Resolve(prices.Dates, calendar.MonthEnd)
	if err != nil {
		return nil, err
	}

	monthly := prices.Reindex(monthEnds).
		PctChange(s.LookbackMonths).
		Shift(s.SkipMonths)

	return monthly.Reindex(prices.Dates).FillForward(0).Shift(1), nil
}
