package quality

import (
	"math"
	"sort"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// Config holds quality gate thresholds
type Config struct {
	MinPriceCoverage  float64 `yaml:"min_price_coverage"`  // 0.90
	MinSectorCoverage float64 `yaml:"min_sector_coverage"` // 1.0
	MaxFillDays       int     `yaml:"max_fill_days"`       // 결측 연속 허용 일수
}

// DefaultConfig returns the thresholds used by the CLI and API
func DefaultConfig() Config {
	return Config{
		MinPriceCoverage:  0.90,
		MinSectorCoverage: 1.0,
		MaxFillDays:       5,
	}
}

// StaleRun is a stretch of missing prices longer than the fill cap
type StaleRun struct {
	Instrument string `json:"instrument"`
	StartRow   int    `json:"start_row"`
	Length     int    `json:"length"`
}

// Report summarizes input coverage
type Report struct {
	Dates          int                `json:"dates"`
	Instruments    int                `json:"instruments"`
	PriceCoverage  float64            `json:"price_coverage"`
	Coverage       map[string]float64 `json:"coverage"` // 종목별 가격 커버리지
	LowCoverage    []string           `json:"low_coverage"`
	StaleRuns      []StaleRun         `json:"stale_runs"`
	SectorCoverage float64            `json:"sector_coverage"` // 섹터 라벨이 있는 종목 비율 (-1 = 섹터 없음)
	Unlabeled      []string           `json:"unlabeled"`
	Warnings       []string           `json:"warnings"`
}

// Passed reports whether no warnings were raised
func (r *Report) Passed() bool {
	return len(r.Warnings) == 0
}

// Gate checks market data coverage before a run
// ⭐ SSOT: S0 → 엔진 입력 품질 검증 (경고만, 실행을 막지 않음)
type Gate struct {
	config Config
	logger *logger.Logger
}

// NewGate creates a new quality gate
func NewGate(config Config, log *logger.Logger) *Gate {
	return &Gate{config: config, logger: log}
}

// Check inspects prices and sectors and logs every warning
func (g *Gate) Check(prices *contracts.Matrix, sectors *contracts.LabelMatrix) *Report {
	report := &Report{
		Dates:          prices.Rows(),
		Instruments:    prices.Cols(),
		Coverage:       make(map[string]float64, prices.Cols()),
		SectorCoverage: -1,
	}

	observed := 0
	for j, code := range prices.Columns {
		n, run, runStart := 0, 0, 0
		for i := range prices.Dates {
			if !math.IsNaN(prices.At(i, j)) {
				n++
				g.closeRun(report, code, run, runStart)
				run = 0
				continue
			}
			// leading gaps are listing history, not staleness
			if n == 0 {
				continue
			}
			if run == 0 {
				runStart = i
			}
			run++
		}
		// a gap still open on the last date is a delisting
		observed += n

		cov := 0.0
		if prices.Rows() > 0 {
			cov = float64(n) / float64(prices.Rows())
		}
		report.Coverage[code] = cov
		if cov < g.config.MinPriceCoverage {
			report.LowCoverage = append(report.LowCoverage, code)
		}
	}
	if cells := prices.Rows() * prices.Cols(); cells > 0 {
		report.PriceCoverage = float64(observed) / float64(cells)
	}

	if sectors != nil {
		labeled := 0
		last := sectors.Rows() - 1
		for _, code := range prices.Columns {
			j := labelIndex(sectors, code)
			if j >= 0 && last >= 0 && sectors.Values[last][j] != "" {
				labeled++
				continue
			}
			report.Unlabeled = append(report.Unlabeled, code)
		}
		if prices.Cols() > 0 {
			report.SectorCoverage = float64(labeled) / float64(prices.Cols())
		}
	}

	g.warn(report)
	return report
}

func (g *Gate) closeRun(report *Report, code string, run, start int) {
	if g.config.MaxFillDays > 0 && run > g.config.MaxFillDays {
		report.StaleRuns = append(report.StaleRuns, StaleRun{Instrument: code, StartRow: start, Length: run})
	}
}

func (g *Gate) warn(report *Report) {
	sort.Strings(report.LowCoverage)
	if len(report.LowCoverage) > 0 {
		report.Warnings = append(report.Warnings, "LOW_PRICE_COVERAGE")
		g.logger.WithFields(map[string]interface{}{
			"instruments": report.LowCoverage,
			"threshold":   g.config.MinPriceCoverage,
		}).Warn("Instruments below price coverage threshold")
	}
	if len(report.StaleRuns) > 0 {
		report.Warnings = append(report.Warnings, "STALE_PRICES")
		g.logger.WithFields(map[string]interface{}{
			"runs":          len(report.StaleRuns),
			"max_fill_days": g.config.MaxFillDays,
		}).Warn("Price gaps longer than the fill cap")
	}
	if report.SectorCoverage >= 0 && report.SectorCoverage < g.config.MinSectorCoverage {
		report.Warnings = append(report.Warnings, "MISSING_SECTORS")
		g.logger.WithFields(map[string]interface{}{
			"unlabeled": report.Unlabeled,
			"coverage":  report.SectorCoverage,
		}).Warn("Instruments without sector labels")
	}
}

func labelIndex(l *contracts.LabelMatrix, code string) int {
	for j, c := range l.Columns {
		if c == code {
			return j
		}
	}
	return -1
}
