package contracts

// SignalBuilder turns a price matrix into a same-shaped score matrix.
// ⭐ SSOT: 시그널 단계 인터페이스
//
// The score on date t must only use prices dated at or before t.
type SignalBuilder interface {
	Build(prices *Matrix) (*Matrix, error)
}

// Ranker turns scores into cross-sectional ranks, one row per score row.
// ⭐ SSOT: 랭킹 단계 인터페이스
type Ranker interface {
	Rank(scores *Matrix) (*Matrix, error)
}

// PortfolioConstructor turns ranks and sector labels into target weights.
// ⭐ SSOT: 비중 산출 단계 인터페이스
type PortfolioConstructor interface {
	Construct(ranks *Matrix, sectors *LabelMatrix) (*Matrix, error)
}

// CostModel turns a weight matrix into a nonnegative cost per weight row.
// ⭐ SSOT: 거래비용 단계 인터페이스
type CostModel interface {
	Cost(weights *Matrix) (*Series, error)
}

// SignalFunc adapts a function to SignalBuilder
type SignalFunc func(prices *Matrix) (*Matrix, error)

// Build calls f(prices)
func (f SignalFunc) Build(prices *Matrix) (*Matrix, error) { return f(prices) }

// RankFunc adapts a function to Ranker
type RankFunc func(scores *Matrix) (*Matrix, error)

// Rank calls f(scores)
func (f RankFunc) Rank(scores *Matrix) (*Matrix, error) { return f(scores) }

// ConstructFunc adapts a function to PortfolioConstructor
type ConstructFunc func(ranks *Matrix, sectors *LabelMatrix) (*Matrix, error)

// Construct calls f(ranks, sectors)
func (f ConstructFunc) Construct(ranks *Matrix, sectors *LabelMatrix) (*Matrix, error) {
	return f(ranks, sectors)
}

// CostFunc adapts a function to CostModel
type CostFunc func(weights *Matrix) (*Series, error)

// Cost calls f(weights)
func (f CostFunc) Cost(weights *Matrix) (*Series, error) { return f(weights) }
