package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/audit"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [strategy.yaml]",
	Short: "전략 백테스트 실행",
	Long: `전략 YAML 하나를 로드하여 백테스트를 실행하고 성과를 출력합니다.

파이프라인:
  data → universe → signal → rank → weights → costs → returns → analysis

Flags:
  --from        시작 날짜 (YYYY-MM-DD, data.start 덮어쓰기)
  --to          종료 날짜 (YYYY-MM-DD, data.end 덮어쓰기)
  --cost-bps    거래비용 bp (costs.bps 덮어쓰기)
  --out         결과 번들 JSON 파일
  --series-dir  일별 시계열 CSV 출력 디렉터리

Example:
  go run ./cmd/backtester run configs/momentum.yaml
  go run ./cmd/backtester run configs/momentum.yaml --from 2022-01-01 --cost-bps 25
  go run ./cmd/backtester run configs/sector_neutral.yaml --out result.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBacktest,
}

var (
	runFrom      string
	runTo        string
	runCostBps   float64
	runOut       string
	runSeriesDir string
	runNoAnalyze bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runTo, "to", "", "종료 날짜 (YYYY-MM-DD)")
	runCmd.Flags().Float64Var(&runCostBps, "cost-bps", 0, "거래비용 (bp)")
	runCmd.Flags().StringVar(&runOut, "out", "", "결과 JSON 파일 경로")
	runCmd.Flags().StringVar(&runSeriesDir, "series-dir", "", "시계열 CSV 출력 디렉터리")
	runCmd.Flags().BoolVar(&runNoAnalyze, "no-analysis", false, "성과 분석 생략")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	started := time.Now()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	sc, hash, err := loadStrategy(cmd, d.strategyPath(args))
	if err != nil {
		return err
	}

	PrintRunHeader(RunMetadata{
		Title:      "Backtest",
		StrategyID: sc.Meta.StrategyID,
		ConfigHash: hash,
		Source:     sourceOf(d, sc),
		Period:     periodOf(sc),
	})

	res, err := d.orchestrator.Run(ctx, brain.RunConfig{Strategy: sc, ConfigHash: hash, SkipAnalysis: runNoAnalyze})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printRunResult(res)

	if runOut != "" {
		if err := writeJSON(runOut, res); err != nil {
			return err
		}
		PrintSuccess("Result written to " + runOut)
	}
	if runSeriesDir != "" {
		if err := writeSeries(runSeriesDir, res); err != nil {
			return err
		}
		PrintSuccess("Series written to " + runSeriesDir)
	}

	PrintCompletion("Backtest", time.Since(started))
	return nil
}

// loadStrategy reads a strategy file and applies command-line overrides
func loadStrategy(cmd *cobra.Command, path string) (*strategyconfig.Config, string, error) {
	sc, _, err := strategyconfig.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load strategy %s: %w", path, err)
	}

	if dataDir != "" {
		sc.Data.Path = dataDir
	}
	if dataSource != "" {
		sc.Data.Source = dataSource
	}
	if f := cmd.Flags().Lookup("from"); f != nil && f.Changed {
		sc.Data.Start = f.Value.String()
	}
	if f := cmd.Flags().Lookup("to"); f != nil && f.Changed {
		sc.Data.End = f.Value.String()
	}
	if f := cmd.Flags().Lookup("cost-bps"); f != nil && f.Changed {
		bps, err := strconv.ParseFloat(f.Value.String(), 64)
		if err != nil {
			return nil, "", fmt.Errorf("parse --cost-bps: %w", err)
		}
		sc.Costs.Bps = bps
	}
	if err := strategyconfig.Validate(sc); err != nil {
		return nil, "", err
	}

	for _, w := range strategyconfig.Warn(sc) {
		PrintWarning(w.Message)
	}

	hash, err := strategyconfig.Hash(sc)
	if err != nil {
		return nil, "", fmt.Errorf("hash strategy: %w", err)
	}
	return sc, hash, nil
}

func printRunResult(res *brain.RunResult) {
	s := res.Summary
	fmt.Println()
	fmt.Println("📊 Summary")
	PrintKeyValue("Run ID", res.RunID, 16)
	PrintKeyValue("Alignment", string(s.Alignment), 16)
	PrintKeyValue("Period", formatDate(s.StartDate)+" ~ "+formatDate(s.EndDate), 16)
	PrintKeyValue("Trading days", strconv.Itoa(s.TradingDays), 16)
	PrintKeyValue("Rebalances", fmt.Sprintf("%d (%d empty)", s.RebalanceCount, s.EmptyRebalance), 16)
	PrintKeyValue("Universe", strconv.Itoa(res.Universe.Count()), 16)
	PrintKeyValue("Gross (sum)", formatPct(s.TotalGross), 16)
	PrintKeyValue("Costs (sum)", formatPct(s.TotalCosts), 16)
	PrintKeyValue("Net (compound)", formatPct(s.TotalNet), 16)
	PrintKeyValue("Turnover", fmt.Sprintf("%.2f", s.TotalTurnover), 16)

	if q := res.Quality; q != nil && !q.Passed() {
		fmt.Println()
		fmt.Println("🔍 Data quality")
		PrintList(q.Warnings)
	}

	p := res.Performance
	if p == nil {
		return
	}

	fmt.Println()
	fmt.Println("📈 Performance")
	widths := []int{8, 10, 10, 10, 8, 10}
	PrintTableHeader([]string{"Stream", "Total", "CAGR", "Vol", "Sharpe", "MaxDD"}, widths)
	PrintTableRow(statsRow("gross", p.Gross), widths)
	PrintTableRow(statsRow("net", p.Net), widths)

	tr := p.TailRisk
	fmt.Println()
	fmt.Printf("⚠️  Tail risk (1-day, %.0f%%)\n", tr.Confidence*100)
	PrintKeyValue("VaR / CVaR", fmt.Sprintf("%.2f%% / %.2f%%", tr.VaR*100, tr.CVaR*100), 16)
	PrintKeyValue("Normal VaR/CVaR", fmt.Sprintf("%.2f%% / %.2f%%", tr.ParametricVaR*100, tr.ParametricCVaR*100), 16)

	if b := p.Benchmark; b != nil {
		fmt.Println()
		fmt.Println("📐 Benchmark regression")
		PrintKeyValue("Alpha (annual)", formatPct(b.AlphaAnnual), 16)
		PrintKeyValue("Beta", fmt.Sprintf("%.3f", b.Beta), 16)
		PrintKeyValue("R²", fmt.Sprintf("%.3f", b.R2), 16)
		PrintKeyValue("Observations", strconv.Itoa(b.Observations), 16)
	}

	if len(p.TurnoverByYear) > 0 {
		fmt.Println()
		fmt.Println("🔄 Turnover by year")
		years := make([]int, 0, len(p.TurnoverByYear))
		for y := range p.TurnoverByYear {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			PrintKeyValue(strconv.Itoa(y), fmt.Sprintf("%.2f", p.TurnoverByYear[y]), 16)
		}
	}

	if a := p.Sectors; a != nil {
		fmt.Println()
		fmt.Println("🏷️  Sector attribution")
		for _, name := range a.Ranked() {
			PrintKeyValue(name, formatPct(a.Contribution[name]), 24)
		}
		if a.Unclassified != 0 {
			PrintKeyValue("(unclassified)", formatPct(a.Unclassified), 24)
		}
	}
}

func statsRow(name string, s audit.ReturnStats) []string {
	return []string{
		name,
		formatPct(s.TotalReturn),
		formatPct(s.CAGR),
		formatPct(s.Volatility),
		fmt.Sprintf("%.2f", s.Sharpe),
		formatPct(s.MaxDrawdown),
	}
}

func sourceOf(d *deps, sc *strategyconfig.Config) string {
	source, path := sc.Data.Source, sc.Data.Path
	if source == "" {
		source = d.cfg.DataSource
	}
	if path == "" {
		path = d.cfg.DataDir
	}
	if source == s0_data.SourcePostgres {
		return source
	}
	return source + ":" + path
}

func periodOf(sc *strategyconfig.Config) *Period {
	if sc.Data.Start == "" && sc.Data.End == "" {
		return nil
	}
	p := &Period{StartDate: sc.Data.Start, EndDate: sc.Data.End}
	if p.StartDate == "" {
		p.StartDate = "-"
	}
	if p.EndDate == "" {
		p.EndDate = "-"
	}
	return p
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeSeries writes the daily streams and the weight panels as CSV
func writeSeries(dir string, res *brain.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	bt := res.Backtest
	streams := contracts.NewMatrix(bt.Dates, []string{"gross", "costs", "net", "equity", "turnover"})
	for j, s := range []*contracts.Series{bt.Gross, bt.Costs, bt.Net, bt.Equity, bt.Turnover} {
		for i := range bt.Dates {
			streams.Set(i, j, s.Values[i])
		}
	}

	panels := map[string]*contracts.Matrix{
		"returns.csv":        streams,
		"target_weights.csv": bt.RebalanceWeights(),
		"holdings.csv":       bt.Holdings,
	}
	for name, m := range panels {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		err = s0_data.WritePanel(f, m)
		f.Close()
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
