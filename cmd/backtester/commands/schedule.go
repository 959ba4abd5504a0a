package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/scheduler"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/scheduler/jobs"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "정기 백테스트 스케줄러",
	Long: `전략을 cron 스케줄로 재실행합니다.

Subcommands:
  start  - 스케줄러 시작 (Ctrl+C 종료)
  run    - 특정 작업 즉시 실행

등록되는 작업:
- backtest:<strategy.yaml>: BACKTEST_SCHEDULE (기본: 평일 18:30)
- universe_refresh: 매일 06:00 (Redis 캐시 사용 시)

Example:
  go run ./cmd/backtester schedule start configs/momentum.yaml configs/sector_neutral.yaml
  go run ./cmd/backtester schedule run backtest:configs/momentum.yaml configs/momentum.yaml`,
}

var (
	scheduleStartCmd = &cobra.Command{
		Use:   "start [strategy.yaml...]",
		Short: "스케줄러 시작",
		RunE:  runScheduleStart,
	}

	scheduleRunCmd = &cobra.Command{
		Use:   "run <job_name> [strategy.yaml...]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScheduleJob,
	}

	scheduleSpec string
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd, scheduleRunCmd)

	scheduleCmd.PersistentFlags().StringVar(&scheduleSpec, "cron", "", "cron 스케줄 (초 포함, 기본: BACKTEST_SCHEDULE)")
}

// newScheduler registers one backtest job per strategy plus the universe refresh
func newScheduler(d *deps, strategies []string) (*scheduler.Scheduler, error) {
	if len(strategies) == 0 {
		strategies = []string{d.cfg.StrategyConfig}
	}
	spec := scheduleSpec
	if spec == "" {
		spec = d.cfg.Schedule
	}

	sched := scheduler.New(d.log)
	for _, path := range strategies {
		if err := sched.AddJob(jobs.NewBacktestJob(path, spec, d.orchestrator, d.log)); err != nil {
			return nil, err
		}
	}
	if d.cache.Enabled() {
		if err := sched.AddJob(jobs.NewUniverseJob(d.universe, d.log)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduleStart(cmd *cobra.Command, args []string) error {
	d, err := newDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := newScheduler(d, args)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %s (%s)\n", name, stat.Schedule)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func runScheduleJob(cmd *cobra.Command, args []string) error {
	d, err := newDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := newScheduler(d, args[1:])
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", args[0])
	result, err := sched.RunJob(cmd.Context(), args[0])
	if err != nil {
		PrintError(err.Error())
		PrintList(sched.GetAllJobs())
		return err
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %s: %s", result.JobName, result.Duration, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration))
	return nil
}
