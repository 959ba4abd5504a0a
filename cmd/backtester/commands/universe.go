package commands

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/external/wikipedia"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "유니버스 구성종목",
	Long: `지수 구성종목과 섹터 라벨을 조회합니다.

Subcommands:
  sp500  - Wikipedia S&P 500 구성종목 + GICS 섹터

Example:
  go run ./cmd/backtester universe sp500
  go run ./cmd/backtester universe sp500 --out data/sectors.csv`,
}

var (
	universeSP500Cmd = &cobra.Command{
		Use:   "sp500",
		Short: "S&P 500 구성종목 조회 및 캐시 갱신",
		Args:  cobra.NoArgs,
		RunE:  runUniverseSP500,
	}

	universeOut string
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeSP500Cmd)

	universeSP500Cmd.Flags().StringVar(&universeOut, "out", "", "sectors.csv 출력 경로 (code,sector)")
}

func runUniverseSP500(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	constituents, err := d.universe.Refresh(ctx)
	if err != nil && len(constituents) == 0 {
		PrintError(err.Error())
		return err
	}
	if err != nil {
		PrintWarning(err.Error())
	}

	PrintSuccess(fmt.Sprintf("%d constituents", len(constituents)))
	printSectorCounts(constituents)

	if universeOut != "" {
		f, err := os.Create(universeOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", universeOut, err)
		}
		defer f.Close()
		if err := s0_data.WriteSectors(f, wikipedia.Sectors(constituents)); err != nil {
			return fmt.Errorf("write %s: %w", universeOut, err)
		}
		PrintSuccess("Sectors written to " + universeOut)
	}
	return nil
}

func printSectorCounts(constituents []wikipedia.Constituent) {
	counts := make(map[string]int)
	for _, c := range constituents {
		counts[c.Sector]++
	}
	sectors := make([]string, 0, len(counts))
	for s := range counts {
		sectors = append(sectors, s)
	}
	sort.Slice(sectors, func(i, j int) bool {
		if counts[sectors[i]] != counts[sectors[j]] {
			return counts[sectors[i]] > counts[sectors[j]]
		}
		return sectors[i] < sectors[j]
	})

	fmt.Println()
	widths := []int{28, 6}
	PrintTableHeader([]string{"Sector", "Count"}, widths)
	for _, s := range sectors {
		PrintTableRow([]string{s, strconv.Itoa(counts[s])}, widths)
	}
}
