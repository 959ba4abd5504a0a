package audit

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// Regression is an OLS fit of strategy returns on benchmark returns
type Regression struct {
	AlphaPerPeriod float64 `json:"alpha_per_period"`
	AlphaAnnual    float64 `json:"alpha_annual"`
	Beta           float64 `json:"beta"`
	R2             float64 `json:"r2"`
	Observations   int     `json:"observations"`
}

// alignBenchmark pairs each strategy return with the benchmark return it competes with.
// Under FORWARD_RETURN the strategy books r[t+1] on t, so the benchmark is led one date too.
func alignBenchmark(net, bench *contracts.Series, policy backtest.Alignment) (dates []time.Time, y, x []float64) {
	b := bench.Reindex(net.Dates, math.NaN())
	if policy == backtest.ForwardReturn {
		b = b.Shift(-1)
	}

	for i, d := range net.Dates {
		yi, xi := net.Values[i], b.Values[i]
		if math.IsNaN(yi) || math.IsNaN(xi) || math.IsInf(yi, 0) || math.IsInf(xi, 0) {
			continue
		}
		dates = append(dates, d)
		y = append(y, yi)
		x = append(x, xi)
	}
	return dates, y, x
}

// AgainstBenchmark regresses net returns on benchmark returns over shared dates
// ⭐ SSOT: 벤치마크 대비 알파/베타
func AgainstBenchmark(net, bench *contracts.Series, policy backtest.Alignment) (*Regression, error) {
	_, y, x := alignBenchmark(net, bench, policy)
	if len(y) < 3 {
		return nil, fmt.Errorf("benchmark regression needs at least 3 shared dates, got %d", len(y))
	}
	if stat.Variance(x, nil) == 0 {
		return nil, fmt.Errorf("benchmark returns have zero variance")
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		// 전략 수익률이 상수 (포지션 없음)
		r2 = 0
	}
	return &Regression{
		AlphaPerPeriod: alpha,
		AlphaAnnual:    alpha * PeriodsPerYear,
		Beta:           beta,
		R2:             r2,
		Observations:   len(y),
	}, nil
}

// RollingBeta computes cov(strategy, benchmark)/var(benchmark) over a trailing window
// of shared observations. The first window-1 dates are omitted.
func RollingBeta(net, bench *contracts.Series, policy backtest.Alignment, window int) *contracts.Series {
	dates, y, x := alignBenchmark(net, bench, policy)
	out := &contracts.Series{}
	if window < 2 {
		return out
	}

	for end := window; end <= len(y); end++ {
		xs, ys := x[end-window:end], y[end-window:end]
		v := stat.Variance(xs, nil)
		beta := math.NaN()
		if v > 0 {
			beta = stat.Covariance(ys, xs, nil) / v
		}
		out.Dates = append(out.Dates, dates[end-1])
		out.Values = append(out.Values, beta)
	}
	return out
}
