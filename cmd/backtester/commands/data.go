package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data/collector"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data/quality"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/database"
)

// dataCmd represents the data command
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "시장 데이터 관리",
	Long: `시장 데이터를 점검하거나 PostgreSQL 로 적재합니다.

Subcommands:
  check   - 가격 커버리지/결측/섹터 라벨 점검
  import  - 파일 소스(csv/parquet) → data.daily_prices, data.stocks
  db      - DB 연결 및 커넥션 풀 상태

Example:
  go run ./cmd/backtester data check --source csv --data-dir testdata/sample
  go run ./cmd/backtester data import --from-source parquet --from-path data/bars
  go run ./cmd/backtester data db`,
}

var (
	dataCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "데이터 품질 점검",
		Args:  cobra.NoArgs,
		RunE:  runDataCheck,
	}

	dataImportCmd = &cobra.Command{
		Use:   "import",
		Short: "파일 소스를 PostgreSQL 로 적재",
		Args:  cobra.NoArgs,
		RunE:  runDataImport,
	}

	dataDBCmd = &cobra.Command{
		Use:   "db",
		Short: "DB/Redis 상태 확인",
		Args:  cobra.NoArgs,
		RunE:  runDataDB,
	}

	importSource  string
	importPath    string
	importWorkers int
	checkMaxFill  int
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataCheckCmd, dataImportCmd, dataDBCmd)

	dataCheckCmd.Flags().IntVar(&checkMaxFill, "max-fill-days", quality.DefaultConfig().MaxFillDays, "허용 결측 연속일")

	dataImportCmd.Flags().StringVar(&importSource, "from-source", s0_data.SourceCSV, "원본 소스 (csv|parquet)")
	dataImportCmd.Flags().StringVar(&importPath, "from-path", "", "원본 경로 (기본: DATA_DIR)")
	dataImportCmd.Flags().IntVar(&importWorkers, "workers", 4, "동시 적재 워커 수")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	provider, err := d.providers.Open("", "")
	if err != nil {
		return err
	}
	md, err := provider.Load(ctx, s0_data.Request{})
	if err != nil {
		return fmt.Errorf("load market data: %w", err)
	}

	cfg := quality.DefaultConfig()
	cfg.MaxFillDays = checkMaxFill
	report := quality.NewGate(cfg, d.log).Check(md.Prices, md.Sectors)

	fmt.Println("📊 데이터 품질 점검")
	PrintKeyValue("Source", provider.Name(), 16)
	PrintKeyValue("Dates", fmt.Sprintf("%d", report.Dates), 16)
	PrintKeyValue("Instruments", fmt.Sprintf("%d", report.Instruments), 16)
	PrintKeyValue("Price coverage", fmt.Sprintf("%.2f%%", report.PriceCoverage*100), 16)
	if report.SectorCoverage >= 0 {
		PrintKeyValue("Sector coverage", fmt.Sprintf("%.2f%%", report.SectorCoverage*100), 16)
	}
	PrintKeyValue("Benchmark", fmt.Sprintf("%v", md.Benchmark != nil), 16)

	if len(report.StaleRuns) > 0 {
		fmt.Println()
		widths := []int{10, 12, 6}
		PrintTableHeader([]string{"Code", "From", "Days"}, widths)
		for _, r := range report.StaleRuns {
			PrintTableRow([]string{r.Instrument, formatDate(md.Prices.Dates[r.StartRow]), fmt.Sprintf("%d", r.Length)}, widths)
		}
	}

	fmt.Println()
	if report.Passed() {
		PrintSuccess("No data quality warnings")
		return nil
	}
	for _, w := range report.Warnings {
		PrintWarning(w)
	}
	return nil
}

func runDataImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	started := time.Now()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.db == nil {
		return fmt.Errorf("data import needs DATABASE_URL")
	}
	if importSource == s0_data.SourcePostgres {
		return fmt.Errorf("import source must be a file source")
	}

	if err := d.db.Migrate(ctx); err != nil {
		return err
	}
	PrintSuccess("Schema applied")

	// 적재 원본은 캐시를 거치지 않음
	files := &s0_data.Factory{DefaultDir: d.cfg.DataDir, Logger: d.log}
	source, err := files.Open(importSource, importPath)
	if err != nil {
		return err
	}

	col := collector.NewCollector(source, s0_data.NewPostgresProvider(d.db.Pool, d.log), d.log)
	results, err := col.Import(ctx, s0_data.Request{}, collector.Config{Workers: importWorkers})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	bars, failed := 0, 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			PrintError(fmt.Sprintf("%s: %v", r.Code, r.Error))
			continue
		}
		bars += r.BarCount
	}

	PrintSuccess(fmt.Sprintf("%d instruments, %d bars imported (%d failed)", len(results)-failed, bars, failed))
	PrintCompletion("Import", time.Since(started))
	if failed > 0 {
		return fmt.Errorf("%d instruments failed", failed)
	}
	return nil
}

func runDataDB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.redis.Enabled() {
		rtt, err := d.redis.Ping(ctx)
		if err != nil {
			PrintError(fmt.Sprintf("Redis ping failed: %v", err))
			return err
		}
		PrintSuccess(fmt.Sprintf("Redis healthy (%s)", rtt))
	} else {
		PrintInfo("REDIS_ENABLED is false; panel cache off")
	}

	if d.db == nil {
		PrintInfo("DATABASE_URL is not set; file sources only")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status, err := d.db.HealthCheck(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Health check failed: %v", err))
		return err
	}
	printHealth(status)
	return nil
}

func printHealth(status *database.HealthStatus) {
	PrintSuccess("Database healthy")
	PrintKeyValue("Response time", status.ResponseTime.String(), 16)
	PrintKeyValue("Max conns", fmt.Sprintf("%d", status.Stats.MaxConns), 16)
	PrintKeyValue("Total conns", fmt.Sprintf("%d", status.Stats.TotalConns), 16)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", status.Stats.AcquiredConns), 16)
	PrintKeyValue("Idle", fmt.Sprintf("%d", status.Stats.IdleConns), 16)
}
