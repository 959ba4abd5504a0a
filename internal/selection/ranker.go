package selection

import (
	"math"
	"sort"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// CrossSectionalRanker ranks instruments against each other on every date
// ⭐ SSOT: 랭킹 로직은 여기서만
//
// Rank 1 is the highest score. Missing scores stay NaN. Ties keep the order in
// which instruments appear in the column axis, so equal inputs always produce
// equal outputs.
type CrossSectionalRanker struct{}

// NewCrossSectionalRanker creates a new ranker
func NewCrossSectionalRanker() *CrossSectionalRanker {
	return &CrossSectionalRanker{}
}

// Rank implements contracts.Ranker
func (r *CrossSectionalRanker) Rank(scores *contracts.Matrix) (*contracts.Matrix, error) {
	ranks := contracts.NewMatrix(scores.Dates, scores.Columns)

	idx := make([]int, 0, scores.Cols())
	for i, row := range scores.Values {
		idx = idx[:0]
		for j, v := range row {
			if !math.IsNaN(v) {
				idx = append(idx, j)
			}
		}

		// Sort by score (descending), stable on column order
		sort.SliceStable(idx, func(a, b int) bool {
			return row[idx[a]] > row[idx[b]]
		})

		// Assign ranks
		for pos, j := range idx {
			ranks.Set(i, j, float64(pos+1))
		}
	}

	return ranks, nil
}

// Coverage returns the number of ranked instruments per date
func Coverage(ranks *contracts.Matrix) *contracts.Series {
	return ranks.CountValid()
}
