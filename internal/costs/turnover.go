// Package costs turns portfolio weight changes into per-date cost drag.
package costs

import (
	"fmt"
	"math"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// LinearTurnover charges a fixed number of basis points per unit of one-way turnover
// ⭐ SSOT: 거래비용 계산은 여기서만
//
// cost[t] = Bps/10000 * sum_i |w[t,i] - w[t-1,i]| / 2
//
// The first row is compared against an all-zero book, so opening the initial
// positions is charged. NaN weights count as zero.
type LinearTurnover struct {
	Bps float64
}

// NewLinearTurnover validates the cost rate
func NewLinearTurnover(bps float64) (*LinearTurnover, error) {
	if bps < 0 || math.IsNaN(bps) || math.IsInf(bps, 0) {
		return nil, fmt.Errorf("%w: cost bps must be a finite value >= 0, got %v", contracts.ErrInvalidConfiguration, bps)
	}
	return &LinearTurnover{Bps: bps}, nil
}

// Cost implements contracts.CostModel
func (c *LinearTurnover) Cost(weights *contracts.Matrix) (*contracts.Series, error) {
	if c.Bps < 0 {
		return nil, fmt.Errorf("%w: cost bps must be >= 0, got %v", contracts.ErrInvalidConfiguration, c.Bps)
	}

	turnover := Turnover(weights)
	out := contracts.NewSeries(weights.Dates)
	for i, v := range turnover.Values {
		out.Values[i] = c.Bps / 10000 * v
	}
	return out, nil
}

// Turnover returns the one-way turnover per weight row, half the L1 change
func Turnover(weights *contracts.Matrix) *contracts.Series {
	out := contracts.NewSeries(weights.Dates)
	prev := make([]float64, weights.Cols())

	for i, row := range weights.Values {
		sum := 0.0
		for j, w := range row {
			if math.IsNaN(w) {
				w = 0
			}
			sum += math.Abs(w - prev[j])
			prev[j] = w
		}
		out.Values[i] = sum / 2
	}
	return out
}
