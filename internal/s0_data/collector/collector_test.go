package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

type stubSource struct {
	md *s0_data.MarketData
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Load(context.Context, s0_data.Request) (*s0_data.MarketData, error) {
	return s.md, nil
}

type memorySink struct {
	mu      sync.Mutex
	bars    map[string]int
	sectors map[string]string
	failOn  string
}

func (m *memorySink) SaveBars(_ context.Context, bars []s0_data.BarRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		if b.Symbol == m.failOn {
			return errors.New("disk full")
		}
		m.bars[b.Symbol]++
	}
	return nil
}

func (m *memorySink) SaveSectors(_ context.Context, sectors map[string]string) error {
	m.sectors = sectors
	return nil
}

func sample() *s0_data.MarketData {
	dates := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	prices := contracts.NewMatrixFilled(dates, []string{"AAPL", "MSFT", "XOM"}, 10)
	return &s0_data.MarketData{
		Prices:  prices,
		Sectors: contracts.StaticLabels(dates, map[string]string{"AAPL": "Tech", "MSFT": "Tech", "XOM": "Energy"}),
	}
}

func TestCollector_Import(t *testing.T) {
	sink := &memorySink{bars: make(map[string]int)}
	c := NewCollector(stubSource{md: sample()}, sink, logger.Nop())

	results, err := c.Import(context.Background(), s0_data.Request{}, Config{Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, 3)

	sort.Slice(results, func(i, j int) bool { return results[i].Code < results[j].Code })
	for _, r := range results {
		assert.NoError(t, r.Error)
		assert.Equal(t, 2, r.BarCount)
	}
	assert.Equal(t, map[string]int{"AAPL": 2, "MSFT": 2, "XOM": 2}, sink.bars)
	assert.Equal(t, "Energy", sink.sectors["XOM"])
}

func TestCollector_ImportReportsFailures(t *testing.T) {
	sink := &memorySink{bars: make(map[string]int), failOn: "MSFT"}
	c := NewCollector(stubSource{md: sample()}, sink, logger.Nop())

	results, err := c.Import(context.Background(), s0_data.Request{}, Config{})
	require.NoError(t, err)

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			assert.Equal(t, "MSFT", r.Code)
		}
	}
	assert.Equal(t, 1, failed)
}
