package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/backtest"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

func TestAttributeSectors(t *testing.T) {
	tests := []struct {
		name   string
		policy backtest.Alignment
	}{
		{"lag weights", backtest.LagWeights},
		{"forward return", backtest.ForwardReturn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sectors := contracts.StaticLabels(days(3), map[string]string{"A": "Tech", "B": "Financials"})
			res := runTwoAsset(t, tt.policy, sectors)

			attr := AttributeSectors(res)
			// long A earns +10% twice, short B earns +10% twice
			assert.InDelta(t, 0.2, attr.Contribution["Tech"], 1e-12)
			assert.InDelta(t, 0.2, attr.Contribution["Financials"], 1e-12)
			assert.InDelta(t, 0.4, attr.TotalGross, 1e-12)
			assert.InDelta(t, 0, attr.Residual, 1e-12)
			assert.Equal(t, 0.0, attr.Unclassified)
		})
	}
}

func TestAttributeSectors_Unclassified(t *testing.T) {
	sectors := contracts.StaticLabels(days(3), map[string]string{"A": "Tech", "B": ""})
	res := runTwoAsset(t, backtest.LagWeights, sectors)

	attr := AttributeSectors(res)
	assert.InDelta(t, 0.2, attr.Unclassified, 1e-12)
	assert.InDelta(t, 0, attr.Residual, 1e-12)
	_, ok := attr.Contribution[""]
	assert.False(t, ok)
}

func TestSectorAttribution_Ranked(t *testing.T) {
	attr := &SectorAttribution{Contribution: map[string]float64{"B": 0.1, "A": 0.1, "C": 0.3, "D": -0.2}}
	require.Equal(t, []string{"C", "A", "B", "D"}, attr.Ranked())
}
