package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// member is one ranked instrument on a single date
type member struct {
	col  int
	rank float64
}

// rankedMembers returns the ranked columns of a row, best rank first.
// Equal ranks keep column order.
func rankedMembers(row []float64, eligible func(j int) bool) []member {
	out := make([]member, 0, len(row))
	for j, r := range row {
		if math.IsNaN(r) || !eligible(j) {
			continue
		}
		out = append(out, member{col: j, rank: r})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].rank < out[b].rank
	})
	return out
}

func allEligible(int) bool { return true }

// assign writes +1/len(longs) and -1/len(shorts) into row; other cells stay 0
func assign(row []float64, longs, shorts []member) {
	for _, m := range longs {
		row[m.col] = 1.0 / float64(len(longs))
	}
	for _, m := range shorts {
		row[m.col] = -1.0 / float64(len(shorts))
	}
}

// pctCount converts a percentage of size into a whole number of names
func pctCount(pct float64, size int) int {
	return int(math.Floor(pct/100*float64(size) + 1e-9))
}

// alignSectors conforms sector labels to the rank matrix axes
func alignSectors(ranks *contracts.Matrix, sectors *contracts.LabelMatrix) (*contracts.LabelMatrix, error) {
	if sectors == nil {
		return nil, fmt.Errorf("%w: sector labels are required for sector-based aggregation", contracts.ErrInvalidConfiguration)
	}
	return sectors.AsOf(ranks.Dates).SelectColumns(ranks.Columns), nil
}

// TopBottomN goes long the best TopN and short the worst BottomN names
// ⭐ SSOT: 섹터 무관 상/하위 N 종목 롱숏 비중
//
// Each side is equally weighted and sums to +1 / -1. When fewer than
// TopN+BottomN names are ranked, both sides shrink in proportion so that no
// instrument is on both sides. Shrunk sides round down, so a single ranked
// name with TopN = BottomN leaves the row flat. A date with no ranked names
// is a zero row.
type TopBottomN struct {
	TopN    int
	BottomN int
}

// NewTopBottomN validates the side sizes
func NewTopBottomN(topN, bottomN int) (*TopBottomN, error) {
	if topN < 0 || bottomN < 0 || topN+bottomN == 0 {
		return nil, fmt.Errorf("%w: top_n/bottom_n must be >= 0 and not both zero (got %d/%d)",
			contracts.ErrInvalidConfiguration, topN, bottomN)
	}
	return &TopBottomN{TopN: topN, BottomN: bottomN}, nil
}

// sideCounts returns how many names go long and short out of n ranked names
func (a *TopBottomN) sideCounts(n int) (int, int) {
	long, short := a.TopN, a.BottomN
	if long+short <= n {
		return long, short
	}
	total := float64(long + short)
	return int(float64(n) * float64(long) / total), int(float64(n) * float64(short) / total)
}

// Construct implements contracts.PortfolioConstructor
func (a *TopBottomN) Construct(ranks *contracts.Matrix, _ *contracts.LabelMatrix) (*contracts.Matrix, error) {
	weights := contracts.NewMatrixFilled(ranks.Dates, ranks.Columns, 0)

	for i, row := range ranks.Values {
		members := rankedMembers(row, allEligible)
		nLong, nShort := a.sideCounts(len(members))

		longs := members[:nLong]
		shorts := members[len(members)-nShort:]
		assign(weights.Row(i), longs, shorts)
	}

	return weights, nil
}

// SectorNeutralPercent picks the top/bottom percentage of each sector
// ⭐ SSOT: 섹터 중립 퍼센트 롱숏 비중
//
// Within a sector of size s, floor(TopPct/100*s) best names go long and
// floor(BottomPct/100*s) worst names go short. Selections are pooled across
// sectors and equal-weighted to +1 / -1. Names without a sector are skipped.
type SectorNeutralPercent struct {
	TopPct    float64
	BottomPct float64
}

// NewSectorNeutralPercent validates the percentages
func NewSectorNeutralPercent(topPct, bottomPct float64) (*SectorNeutralPercent, error) {
	if err := validatePct(topPct, bottomPct); err != nil {
		return nil, err
	}
	return &SectorNeutralPercent{TopPct: topPct, BottomPct: bottomPct}, nil
}

func validatePct(topPct, bottomPct float64) error {
	if topPct < 0 || bottomPct < 0 || topPct > 100 || bottomPct > 100 {
		return fmt.Errorf("%w: percentages must be within [0, 100] (got %.2f/%.2f)",
			contracts.ErrInvalidConfiguration, topPct, bottomPct)
	}
	if topPct+bottomPct > 100 {
		return fmt.Errorf("%w: top_pct + bottom_pct must not exceed 100 (got %.2f)",
			contracts.ErrInvalidConfiguration, topPct+bottomPct)
	}
	if topPct+bottomPct == 0 {
		return fmt.Errorf("%w: top_pct and bottom_pct are both zero", contracts.ErrInvalidConfiguration)
	}
	return nil
}

// Construct implements contracts.PortfolioConstructor
func (a *SectorNeutralPercent) Construct(ranks *contracts.Matrix, sectors *contracts.LabelMatrix) (*contracts.Matrix, error) {
	if err := validatePct(a.TopPct, a.BottomPct); err != nil {
		return nil, err
	}
	return constructBySector(ranks, sectors, a.TopPct, a.BottomPct)
}

// LongOnlyPercent holds the top percentage of each sector, long only
// ⭐ SSOT: 섹터별 상위 퍼센트 롱온리 비중
type LongOnlyPercent struct {
	TopPct float64
}

// NewLongOnlyPercent validates the percentage
func NewLongOnlyPercent(topPct float64) (*LongOnlyPercent, error) {
	if err := validatePct(topPct, 0); err != nil {
		return nil, err
	}
	return &LongOnlyPercent{TopPct: topPct}, nil
}

// Construct implements contracts.PortfolioConstructor
func (a *LongOnlyPercent) Construct(ranks *contracts.Matrix, sectors *contracts.LabelMatrix) (*contracts.Matrix, error) {
	if err := validatePct(a.TopPct, 0); err != nil {
		return nil, err
	}
	return constructBySector(ranks, sectors, a.TopPct, 0)
}

func constructBySector(ranks *contracts.Matrix, sectors *contracts.LabelMatrix, topPct, bottomPct float64) (*contracts.Matrix, error) {
	labels, err := alignSectors(ranks, sectors)
	if err != nil {
		return nil, err
	}

	weights := contracts.NewMatrixFilled(ranks.Dates, ranks.Columns, 0)

	for i, row := range ranks.Values {
		sectorRow := labels.Row(i)

		// group ranked names by sector, best rank first
		groups := make(map[string][]member)
		order := make([]string, 0)
		for _, m := range rankedMembers(row, func(j int) bool { return sectorRow[j] != "" }) {
			s := sectorRow[m.col]
			if _, ok := groups[s]; !ok {
				order = append(order, s)
			}
			groups[s] = append(groups[s], m)
		}
		sort.Strings(order)

		var longs, shorts []member
		for _, s := range order {
			g := groups[s]
			nTop, nBottom := pctCount(topPct, len(g)), pctCount(bottomPct, len(g))
			longs = append(longs, g[:nTop]...)
			shorts = append(shorts, g[len(g)-nBottom:]...)
		}

		assign(weights.Row(i), longs, shorts)
	}

	return weights, nil
}
