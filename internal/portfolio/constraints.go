package portfolio

import (
	"fmt"
	"math"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// WeightTolerance is the allowed deviation of a side sum from ±1
const WeightTolerance = 1e-9

// SideSums returns the sum of positive and negative weights of a row
func SideSums(row []float64) (long, short float64) {
	for _, w := range row {
		if math.IsNaN(w) {
			continue
		}
		if w > 0 {
			long += w
		} else {
			short += w
		}
	}
	return long, short
}

// CheckNormalization verifies every row is a dollar-neutral (or long-only)
// book: positive weights sum to +1 or 0 and negative weights to -1 or 0.
// ⭐ SSOT: 비중 정규화 제약조건 검증
func CheckNormalization(weights *contracts.Matrix) error {
	for i, row := range weights.Values {
		long, short := SideSums(row)
		if !nearAny(long, 0, 1) || !nearAny(short, 0, -1) {
			return fmt.Errorf("weights on %s not normalized: long=%.12f short=%.12f",
				weights.Dates[i].Format("2006-01-02"), long, short)
		}
	}
	return nil
}

func nearAny(v float64, targets ...float64) bool {
	for _, t := range targets {
		if math.Abs(v-t) <= WeightTolerance {
			return true
		}
	}
	return false
}
