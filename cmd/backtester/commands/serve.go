package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/api"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [strategy.yaml...]",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check
  GET  /metrics                - Prometheus 메트릭
  GET  /api/backtests          - 최근 실행 목록
  POST /api/backtests          - 전략 YAML 실행
  POST /api/backtests/sweep    - 비용 스윕
  GET  /api/backtests/{id}     - 실행 결과 조회
  GET  /api/jobs               - 스케줄 작업 통계 (--with-scheduler)
  POST /api/jobs/{name}/run    - 작업 즉시 실행 (--with-scheduler)

Example:
  go run ./cmd/backtester serve
  go run ./cmd/backtester serve --port 8080 --with-scheduler configs/momentum.yaml`,
	RunE: runServe,
}

var (
	servePort          string
	serveWithScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT)")
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "스케줄러 함께 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := newDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	if servePort != "" {
		d.cfg.Port = servePort
	}

	var limiter handlers.Limiter
	if d.redis.Enabled() {
		limiter = d.limiter
	}
	backtests := handlers.NewBacktestHandler(d.orchestrator, limiter, d.cfg.SweepParallelism, d.cfg.DataDir, d.log)

	var jobsHandler *handlers.JobsHandler
	if serveWithScheduler {
		sched, err := newScheduler(d, args)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		jobsHandler = handlers.NewJobsHandler(sched)
	}

	router := api.NewRouter(backtests, jobsHandler, d.metrics, d.log)
	server := api.New(d.cfg, d.log, router)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	d.log.Info("Server stopped")
	return nil
}
