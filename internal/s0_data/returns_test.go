package s0_data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/calendar"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/costs"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/portfolio"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s2_signals"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/selection"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// A jumps +20% between the open and the close of 01-03. The close-to-close
// signal sees it only at the 01-03 close, so the jump must not be earned;
// the later open-to-open move from 01-05 to 01-08 must be.
func TestOpenToOpenReturns_SameDayMoveIsNotEarned(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}
	closesA := []float64{100, 120, 120, 120, 120}
	opensA := []float64{100, 100, 120, 120, 132}
	closesB := []float64{100, 100, 99, 98, 97}

	var records []BarRecord
	for i, d := range dates {
		ts := day(d).UnixMilli()
		records = append(records,
			BarRecord{Symbol: "A", Timestamp: ts, Open: opensA[i], Close: closesA[i]},
			BarRecord{Symbol: "B", Timestamp: ts, Open: closesB[i], Close: closesB[i]},
		)
	}
	md := FromBars(records, Request{Returns: ReturnsOpenToOpen})

	sig, err := s2_signals.NewCloseToCloseMomentum(1, 0)
	require.NoError(t, err)
	agg, err := portfolio.NewTopBottomN(1, 0)
	require.NoError(t, err)
	cost, err := costs.NewLinearTurnover(0)
	require.NoError(t, err)
	st := backtest.Stages{Signal: sig, Ranker: selection.NewCrossSectionalRanker(), Aggregate: agg, Cost: cost}

	tests := []struct {
		policy backtest.Alignment
		gross  []float64
	}{
		{backtest.LagWeights, []float64{0, 0, 0, 0.1, 0}},
		{backtest.ForwardReturn, []float64{0, 0, 0.1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			cfg := backtest.DefaultConfig()
			cfg.Frequency = calendar.Daily
			cfg.Alignment = tt.policy

			res, err := backtest.NewEngine(logger.Nop()).Run(context.Background(), cfg,
				backtest.Inputs{Prices: md.Prices, Returns: md.Returns}, st)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.gross, res.Gross.Values, 1e-12)
		})
	}
}
