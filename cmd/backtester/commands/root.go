package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dataDir    string
	dataSource string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Cross-sectional equity long/short momentum backtester",
	Long: `Equity Long/Short Backtester CLI

전략 YAML 하나로 시그널 → 랭크 → 비중 → 비용 → 수익률 파이프라인을 실행합니다.

Usage:
  go run ./cmd/backtester [command]

Examples:
  go run ./cmd/backtester run configs/momentum.yaml
  go run ./cmd/backtester sweep configs/momentum.yaml --parallel 4
  go run ./cmd/backtester config validate configs/*.yaml
  go run ./cmd/backtester universe sp500 --out data/sectors.csv
  go run ./cmd/backtester serve --port 8089`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "file source directory (default: DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&dataSource, "source", "", "data source: csv|parquet|postgres (default: DATA_SOURCE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
