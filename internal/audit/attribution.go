package audit

import (
	"math"
	"sort"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
)

// SectorAttribution splits gross return by sector
type SectorAttribution struct {
	Contribution map[string]float64 `json:"contribution"` // 섹터별 산술 합
	Unclassified float64            `json:"unclassified"`
	TotalGross   float64            `json:"total_gross"`
	Residual     float64            `json:"residual"` // Σ섹터 + 미분류 - 총수익, 0 이어야 함
}

// AttributeSectors sums holding × realized return per sector label on each date
// ⭐ SSOT: 섹터별 수익 기여도
//
// Contributions are arithmetic, so they add up to the arithmetic sum of gross
// returns rather than the compounded total.
func AttributeSectors(res *backtest.Result) *SectorAttribution {
	attr := &SectorAttribution{
		Contribution: make(map[string]float64),
		TotalGross:   res.Gross.Sum(),
	}

	for i := range res.Dates {
		labels := res.Sectors.Row(i)
		for j, w := range res.Holdings.Values[i] {
			r := res.Realized.Values[i][j]
			if w == 0 || math.IsNaN(w) || math.IsNaN(r) {
				continue
			}
			if labels[j] == "" {
				attr.Unclassified += w * r
				continue
			}
			attr.Contribution[labels[j]] += w * r
		}
	}

	sum := attr.Unclassified
	for _, v := range attr.Contribution {
		sum += v
	}
	attr.Residual = sum - attr.TotalGross
	return attr
}

// Ranked returns sectors ordered by contribution, largest first
func (s *SectorAttribution) Ranked() []string {
	names := make([]string, 0, len(s.Contribution))
	for name := range s.Contribution {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Contribution[names[i]] == s.Contribution[names[j]] {
			return names[i] < names[j]
		}
		return s.Contribution[names[i]] > s.Contribution[names[j]]
	})
	return names
}
