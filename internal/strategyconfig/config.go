package strategyconfig

import "time"

// Config는 백테스트 전략의 전체 설정
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Data        Data        `yaml:"data" json:"data"`
	Universe    Universe    `yaml:"universe" json:"universe"`
	Rebalance   Rebalance   `yaml:"rebalance" json:"rebalance"`
	Alignment   Alignment   `yaml:"alignment" json:"alignment"`
	Prices      Prices      `yaml:"prices" json:"prices"`
	Signal      Signal      `yaml:"signal" json:"signal"`
	Aggregation Aggregation `yaml:"aggregation" json:"aggregation"`
	Costs       Costs       `yaml:"costs" json:"costs"`
	Analytics   Analytics   `yaml:"analytics" json:"analytics"`
	Sweep       Sweep       `yaml:"sweep" json:"sweep"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Data 데이터 소스와 기간
type Data struct {
	Source    string `yaml:"source" json:"source"` // csv, parquet, postgres (빈 값 = 환경설정)
	Path      string `yaml:"path" json:"path"`     // 파일 소스 디렉터리
	Start     string `yaml:"start" json:"start"`   // YYYY-MM-DD, 빈 값 = 전체
	End       string `yaml:"end" json:"end"`
	Benchmark string `yaml:"benchmark" json:"benchmark"` // 벤치마크 종목 (예: SPY)
	Returns   string `yaml:"returns" json:"returns"`     // close_to_close, open_to_open, supplied
}

// Universe S1: 투자 가능 풀
type Universe struct {
	Kind        string   `yaml:"kind" json:"kind"` // all, static, sp500
	Instruments []string `yaml:"instruments" json:"instruments"`
	Exclude     []string `yaml:"exclude" json:"exclude"`
}

// Rebalance 리밸런싱 주기
type Rebalance struct {
	Frequency string `yaml:"frequency" json:"frequency"` // DAILY, MONTH_END
}

// Alignment 시점 정렬 정책
type Alignment struct {
	Policy      string `yaml:"policy" json:"policy"`             // LAG_WEIGHTS, FORWARD_RETURN
	HoldingFill string `yaml:"holding_fill" json:"holding_fill"` // FORWARD, ZERO
}

// Prices 가격 전처리
type Prices struct {
	MaxFillDays *int `yaml:"max_fill_days,omitempty" json:"max_fill_days,omitempty"` // nil = 5
}

// Signal S2: 모멘텀 시그널
type Signal struct {
	Kind     string `yaml:"kind" json:"kind"`         // close_to_close, monthly
	Lookback int    `yaml:"lookback" json:"lookback"` // 일 또는 월
	Skip     int    `yaml:"skip" json:"skip"`
}

// Aggregation 랭크 → 비중
// top_n/bottom_n 과 top_pct/bottom_pct 는 동시에 사용할 수 없음
type Aggregation struct {
	Kind      string   `yaml:"kind" json:"kind"` // top_bottom_n, sector_neutral_pct, long_only_pct
	TopN      *int     `yaml:"top_n,omitempty" json:"top_n,omitempty"`
	BottomN   *int     `yaml:"bottom_n,omitempty" json:"bottom_n,omitempty"`
	TopPct    *float64 `yaml:"top_pct,omitempty" json:"top_pct,omitempty"`
	BottomPct *float64 `yaml:"bottom_pct,omitempty" json:"bottom_pct,omitempty"`
}

// Costs 거래비용
type Costs struct {
	Bps float64 `yaml:"bps" json:"bps"` // 편도 회전율 1단위당 bp
}

// Analytics 성과 분석 파라미터
type Analytics struct {
	RiskFree          float64 `yaml:"risk_free" json:"risk_free"` // 연율
	RollingBetaWindow int     `yaml:"rolling_beta_window" json:"rolling_beta_window"`
	VaRConfidence     float64 `yaml:"var_confidence" json:"var_confidence"` // 기본 0.95
}

// Sweep 파라미터 스윕 (비용 민감도)
type Sweep struct {
	CostBps []float64 `yaml:"cost_bps" json:"cost_bps"`
}

// Signal kinds
const (
	SignalCloseToClose = "close_to_close"
	SignalMonthly      = "monthly"
)

// Aggregation kinds
const (
	AggTopBottomN       = "top_bottom_n"
	AggSectorNeutralPct = "sector_neutral_pct"
	AggLongOnlyPct      = "long_only_pct"
)

// Universe kinds
const (
	UniverseAll    = "all"
	UniverseStatic = "static"
	UniverseSP500  = "sp500"
)

// DefaultMaxFillDays applies when prices.max_fill_days is omitted
const DefaultMaxFillDays = 5

// FillDays returns the configured forward-fill cap
func (p Prices) FillDays() int {
	if p.MaxFillDays == nil {
		return DefaultMaxFillDays
	}
	return *p.MaxFillDays
}

// StartDate parses data.start; zero time when empty
func (d Data) StartDate() (time.Time, error) {
	return parseDate(d.Start)
}

// EndDate parses data.end; zero time when empty
func (d Data) EndDate() (time.Time, error) {
	return parseDate(d.End)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash     string    `json:"config_hash"`
	ConfigYAML     string    `json:"config_yaml"`
	StrategyID     string    `json:"strategy_id"`
	GitCommit      string    `json:"git_commit"`
	DataSnapshotID string    `json:"data_snapshot_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Counts returns top_n/bottom_n with omitted sides as zero
func (a Aggregation) Counts() (top, bottom int) {
	return intOr(a.TopN), intOr(a.BottomN)
}

// Percents returns top_pct/bottom_pct with omitted sides as zero
func (a Aggregation) Percents() (top, bottom float64) {
	return floatOr(a.TopPct), floatOr(a.BottomPct)
}
