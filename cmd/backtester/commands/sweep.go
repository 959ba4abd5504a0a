package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep [strategy.yaml]",
	Short: "거래비용 민감도 스윕",
	Long: `sweep.cost_bps 의 각 비용 수준으로 같은 전략을 병렬 실행합니다.
데이터는 한 번만 로드하고 시그널/비중은 모든 변형에서 동일합니다.

Example:
  go run ./cmd/backtester sweep configs/momentum.yaml
  go run ./cmd/backtester sweep configs/momentum.yaml --parallel 8 --out sweep.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSweep,
}

var (
	sweepParallel int
	sweepOut      string
	sweepFrom     string
	sweepTo       string
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", 0, "동시 실행 수 (기본: SWEEP_PARALLELISM)")
	sweepCmd.Flags().StringVar(&sweepOut, "out", "", "결과 JSON 파일 경로")
	sweepCmd.Flags().StringVar(&sweepFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	sweepCmd.Flags().StringVar(&sweepTo, "to", "", "종료 날짜 (YYYY-MM-DD)")
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	parallel := sweepParallel
	if parallel <= 0 {
		parallel = d.cfg.SweepParallelism
	}

	PrintRunHeader(RunMetadata{
		Title:      fmt.Sprintf("Cost sweep (%d variants, parallel %d)", len(sc.Sweep.CostBps), parallel),
		StrategyID: sc.Meta.StrategyID,
		ConfigHash: hash,
		Source:     sourceOf(d, sc),
		Period:     periodOf(sc),
	})

	outcomes, err := d.orchestrator.Sweep(ctx, brain.RunConfig{Strategy: sc, ConfigHash: hash}, parallel)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	fmt.Println()
	widths := []int{14, 10, 10, 10, 8, 10}
	PrintTableHeader([]string{"Variant", "Gross", "Costs", "Net", "Sharpe", "MaxDD"}, widths)
	for _, o := range outcomes {
		sharpe, maxDD := "-", "-"
		if p := o.Performance; p != nil {
			sharpe = fmt.Sprintf("%.2f", p.Net.Sharpe)
			maxDD = formatPct(p.Net.MaxDrawdown)
		}
		PrintTableRow([]string{
			o.Name,
			formatPct(o.Summary.TotalGross),
			formatPct(o.Summary.TotalCosts),
			formatPct(o.Summary.TotalNet),
			sharpe,
			maxDD,
		}, widths)
	}

	if sweepOut != "" {
		if err := writeJSON(sweepOut, outcomes); err != nil {
			return err
		}
		PrintSuccess("Sweep written to " + sweepOut)
	}

	PrintCompletion("Sweep", time.Since(started))
	return nil
}
