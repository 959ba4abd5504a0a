package audit

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultVaRConfidence applies when Options.VaRConfidence is zero
const DefaultVaRConfidence = 0.95

// TailRisk is the one-day loss profile of a return stream.
// Losses are positive: 0.02 means a 2% daily loss.
type TailRisk struct {
	Confidence     float64 `json:"confidence"`
	VaR            float64 `json:"var"`             // historical simulation
	CVaR           float64 `json:"cvar"`            // 꼬리 평균 손실 (expected shortfall)
	ParametricVaR  float64 `json:"parametric_var"`  // 정규분포 가정
	ParametricCVaR float64 `json:"parametric_cvar"` // 정규분포 가정
}

// TailRiskOf computes historical and parametric VaR/CVaR; NaN observations are dropped
// ⭐ SSOT: VaR/CVaR 계산은 여기서만
func TailRiskOf(returns []float64, confidence float64) TailRisk {
	r := dropNaN(returns)
	out := TailRisk{Confidence: confidence}
	out.VaR, out.CVaR = HistoricalVaR(r, confidence)
	if len(r) >= 2 {
		mean, std := stat.MeanStdDev(r, nil)
		out.ParametricVaR, out.ParametricCVaR = ParametricVaR(mean, std, confidence)
	}
	return out
}

// HistoricalVaR takes the (1-confidence) quantile of observed returns and the
// mean of the tail at or below it
func HistoricalVaR(returns []float64, confidence float64) (valueAtRisk, cvar float64) {
	if len(returns) == 0 {
		return 0, 0
	}

	// 오름차순: 손실이 앞에
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	tail := stat.Mean(sorted[:idx+1], nil)
	return lossOf(sorted[idx]), lossOf(tail)
}

// ParametricVaR assumes normally distributed returns with the given moments
func ParametricVaR(mean, stdDev, confidence float64) (valueAtRisk, cvar float64) {
	if stdDev <= 0 {
		return lossOf(mean), lossOf(mean)
	}
	z := distuv.UnitNormal.Quantile(confidence)
	valueAtRisk = lossOf(mean - z*stdDev)
	cvar = lossOf(mean - stdDev*distuv.UnitNormal.Prob(z)/(1-confidence))
	return valueAtRisk, cvar
}

// lossOf reports a negative return as a positive loss; gains are no loss
func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
