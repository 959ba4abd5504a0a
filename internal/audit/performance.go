package audit

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// PeriodsPerYear annualizes daily statistics
const PeriodsPerYear = 252

// Analyzer implements performance analysis of a backtest result
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	logger *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(log *logger.Logger) *Analyzer {
	return &Analyzer{logger: log}
}

// Options tune the analysis
type Options struct {
	RiskFree          float64           // 연율 무위험 수익률
	RollingBetaWindow int               // 0 = 롤링 베타 생략
	Benchmark         *contracts.Series // 벤치마크 일별 수익률 (nil = 생략)
	VaRConfidence     float64           // 0 = DefaultVaRConfidence
}

// ReturnStats summarizes one return stream
type ReturnStats struct {
	TotalReturn float64 `json:"total_return"`
	CAGR        float64 `json:"cagr"`
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"` // <= 0
}

// PerformanceReport represents performance analysis report
type PerformanceReport struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Gross ReturnStats `json:"gross"`
	Net   ReturnStats `json:"net"`

	// 거래비용/회전율
	TotalCosts     float64         `json:"total_costs"`
	TotalTurnover  float64         `json:"total_turnover"`
	TurnoverByYear map[int]float64 `json:"turnover_by_year"`

	// 순수익률 꼬리 위험
	TailRisk TailRisk `json:"tail_risk"`

	// 벤치마크 비교
	Benchmark   *Regression       `json:"benchmark,omitempty"`
	RollingBeta *contracts.Series `json:"rolling_beta,omitempty"`

	// 섹터 기여도
	Sectors *SectorAttribution `json:"sectors,omitempty"`
}

// Analyze computes the full report for a run
func (a *Analyzer) Analyze(res *backtest.Result, opts Options) (*PerformanceReport, error) {
	report := &PerformanceReport{
		Gross:          Stats(res.Gross.Values, opts.RiskFree),
		Net:            Stats(res.Net.Values, opts.RiskFree),
		TotalCosts:     res.Costs.Sum(),
		TotalTurnover:  res.Turnover.Sum(),
		TurnoverByYear: TurnoverByYear(res.Turnover),
	}
	confidence := opts.VaRConfidence
	if confidence == 0 {
		confidence = DefaultVaRConfidence
	}
	report.TailRisk = TailRiskOf(res.Net.Values, confidence)
	if len(res.Dates) > 0 {
		report.StartDate = res.Dates[0]
		report.EndDate = res.Dates[len(res.Dates)-1]
	}

	if opts.Benchmark != nil {
		reg, err := AgainstBenchmark(res.Net, opts.Benchmark, res.Config.Alignment)
		if err != nil {
			return nil, err
		}
		report.Benchmark = reg
		if opts.RollingBetaWindow > 0 {
			report.RollingBeta = RollingBeta(res.Net, opts.Benchmark, res.Config.Alignment, opts.RollingBetaWindow)
		}
	}

	if res.Sectors != nil {
		report.Sectors = AttributeSectors(res)
	}

	fields := map[string]interface{}{
		"net_cagr":     report.Net.CAGR,
		"net_sharpe":   report.Net.Sharpe,
		"max_drawdown": report.Net.MaxDrawdown,
		"var":          report.TailRisk.VaR,
		"turnover":     report.TotalTurnover,
	}
	if report.Benchmark != nil {
		fields["beta"] = report.Benchmark.Beta
		fields["alpha_annual"] = report.Benchmark.AlphaAnnual
	}
	a.logger.WithFields(fields).Info("Performance analysis completed")

	return report, nil
}

// Stats computes the standard statistics of a daily return stream.
// NaN observations are dropped.
func Stats(returns []float64, riskFree float64) ReturnStats {
	r := dropNaN(returns)
	return ReturnStats{
		TotalReturn: TotalReturn(r),
		CAGR:        CAGR(r),
		Volatility:  Volatility(r),
		Sharpe:      Sharpe(r, riskFree),
		MaxDrawdown: MaxDrawdown(r),
	}
}

// TotalReturn compounds returns
func TotalReturn(returns []float64) float64 {
	total := 1.0
	for _, r := range returns {
		total *= 1 + r
	}
	return total - 1
}

// CAGR annualizes the compounded return over len(returns) trading days
func CAGR(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	years := float64(len(returns)) / PeriodsPerYear
	return math.Pow(1+TotalReturn(returns), 1/years) - 1
}

// Volatility is the annualized sample standard deviation
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(PeriodsPerYear)
}

// Sharpe is the annualized mean excess return over annualized volatility
func Sharpe(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree/PeriodsPerYear
	}
	vol := Volatility(excess)
	if vol == 0 {
		return 0
	}
	return stat.Mean(excess, nil) * PeriodsPerYear / vol
}

// MaxDrawdown returns the deepest peak-to-trough fall of the equity curve (<= 0)
func MaxDrawdown(returns []float64) float64 {
	equity, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// TurnoverByYear sums turnover per calendar year
func TurnoverByYear(turnover *contracts.Series) map[int]float64 {
	out := make(map[int]float64)
	for i, d := range turnover.Dates {
		if !math.IsNaN(turnover.Values[i]) {
			out[d.Year()] += turnover.Values[i]
		}
	}
	return out
}

// Years returns the keys of a per-year map in order
func Years(byYear map[int]float64) []int {
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
