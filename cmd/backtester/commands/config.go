package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/brain"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/strategyconfig"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 검증/해시",
	Long: `전략 YAML 파일을 검증하거나 재현성 해시를 계산합니다.

Subcommands:
  validate  - 스키마 검증 및 경고 출력
  hash      - 정규화된 설정의 SHA-256
  snapshot  - 의사결정 스냅샷 (JSON)

Example:
  go run ./cmd/backtester config validate configs/*.yaml
  go run ./cmd/backtester config hash configs/momentum.yaml`,
}

var (
	configValidateCmd = &cobra.Command{
		Use:   "validate <strategy.yaml>...",
		Short: "설정 검증",
		Args:  cobra.MinimumNArgs(1),
		RunE:  validateConfigs,
	}

	configHashCmd = &cobra.Command{
		Use:   "hash <strategy.yaml>",
		Short: "설정 해시",
		Args:  cobra.ExactArgs(1),
		RunE:  hashConfig,
	}

	configSnapshotCmd = &cobra.Command{
		Use:   "snapshot <strategy.yaml>",
		Short: "의사결정 스냅샷 출력",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshotConfig,
	}

	snapshotGitCommit string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configHashCmd, configSnapshotCmd)

	configSnapshotCmd.Flags().StringVar(&snapshotGitCommit, "git-commit", "", "기록할 git 커밋")
}

func validateConfigs(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		sc, _, err := strategyconfig.Load(path)
		if err != nil {
			PrintError(fmt.Sprintf("%s: %v", path, err))
			failed++
			continue
		}

		PrintSuccess(fmt.Sprintf("%s: %s", path, sc.Meta.StrategyID))
		for _, w := range strategyconfig.Warn(sc) {
			fmt.Printf("   ⚠️  [%s] %s\n", w.Code, w.Message)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configs invalid", failed, len(args))
	}
	return nil
}

func hashConfig(cmd *cobra.Command, args []string) error {
	sc, _, err := strategyconfig.Load(args[0])
	if err != nil {
		return err
	}
	hash, err := strategyconfig.Hash(sc)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func snapshotConfig(cmd *cobra.Command, args []string) error {
	sc, raw, err := strategyconfig.Load(args[0])
	if err != nil {
		return err
	}

	// 데이터 요청 키가 스냅샷 ID 역할
	req, err := brain.Request(sc)
	if err != nil {
		return err
	}

	snap, err := strategyconfig.NewDecisionSnapshot(sc, raw, snapshotGitCommit, req.Key())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
