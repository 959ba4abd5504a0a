package backtest

import (
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// Result holds everything one backtest run produced
// ⭐ SSOT: 백테스트 결과 번들
//
// Every matrix and series is on the daily index in Dates. Signal-stage
// outputs that only exist on rebalance dates (Ranks, TargetWeights) are NaN
// on the other rows.
type Result struct {
	RunID    string        `json:"run_id"`
	Config   Config        `json:"config"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Dates          []time.Time `json:"dates"`
	RebalanceDates []time.Time `json:"rebalance_dates"`

	Signal        *contracts.Matrix `json:"signal"`
	Ranks         *contracts.Matrix `json:"ranks"`
	TargetWeights *contracts.Matrix `json:"target_weights"`
	Holdings      *contracts.Matrix `json:"holdings"` // book earning each date's gross return
	Realized      *contracts.Matrix `json:"realized"` // return each holding earns on that date

	Sectors *contracts.LabelMatrix `json:"sectors,omitempty"`

	Gross  *contracts.Series `json:"gross"`
	Costs  *contracts.Series `json:"costs"`
	Net    *contracts.Series `json:"net"`
	Equity *contracts.Series `json:"equity"`

	Turnover     *contracts.Series `json:"turnover"`      // one-way, 0 off rebalance
	RankCoverage *contracts.Series `json:"rank_coverage"` // ranked names, 0 off rebalance
}

// Summary is a compact view of a run for logs, CLI output and the API
type Summary struct {
	RunID          string    `json:"run_id"`
	Alignment      Alignment `json:"alignment"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TradingDays    int       `json:"trading_days"`
	RebalanceCount int       `json:"rebalance_count"`
	TotalGross     float64   `json:"total_gross"`
	TotalCosts     float64   `json:"total_costs"`
	TotalNet       float64   `json:"total_net"` // compounded
	TotalTurnover  float64   `json:"total_turnover"`
	EmptyRebalance int       `json:"empty_rebalances"` // rebalance dates with nothing ranked
}

// RebalanceWeights returns the target weights on rebalance dates only
func (r *Result) RebalanceWeights() *contracts.Matrix {
	return r.TargetWeights.Reindex(r.RebalanceDates)
}

// FinalEquity returns the last equity value, 1.0 for an empty run
func (r *Result) FinalEquity() float64 {
	if r.Equity == nil || r.Equity.Len() == 0 {
		return 1
	}
	return r.Equity.Values[r.Equity.Len()-1]
}

// Degenerate reports whether the run never held a position
func (r *Result) Degenerate() bool {
	return r.Turnover == nil || r.Turnover.Sum() == 0
}

// Summarize builds the compact summary
func (r *Result) Summarize() Summary {
	s := Summary{
		RunID:          r.RunID,
		Alignment:      r.Config.Alignment,
		TradingDays:    len(r.Dates),
		RebalanceCount: len(r.RebalanceDates),
		TotalNet:       r.FinalEquity() - 1,
	}
	if len(r.Dates) > 0 {
		s.StartDate = r.Dates[0]
		s.EndDate = r.Dates[len(r.Dates)-1]
	}
	if r.Gross != nil {
		s.TotalGross = r.Gross.Sum()
	}
	if r.Costs != nil {
		s.TotalCosts = r.Costs.Sum()
	}
	if r.Turnover != nil {
		s.TotalTurnover = r.Turnover.Sum()
	}
	if r.RankCoverage != nil {
		for _, d := range r.RebalanceDates {
			if v, ok := r.RankCoverage.Value(d); ok && v == 0 {
				s.EmptyRebalance++
			}
		}
	}
	return s
}
