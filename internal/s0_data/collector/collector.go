package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/s0_data"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// Sink persists bars and sector labels (s0_data.PostgresProvider)
type Sink interface {
	SaveBars(ctx context.Context, bars []s0_data.BarRecord) error
	SaveSectors(ctx context.Context, sectors map[string]string) error
}

// Collector copies market data from a file source into the database
// ⭐ SSOT: 데이터 적재 오케스트레이션은 이 패키지에서만
type Collector struct {
	source s0_data.Provider
	sink   Sink
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers int // Number of concurrent workers
}

// NewCollector creates a new Collector instance
func NewCollector(source s0_data.Provider, sink Sink, log *logger.Logger) *Collector {
	return &Collector{
		source: source,
		sink:   sink,
		logger: log.WithField("module", "collector"),
	}
}

// ImportResult represents the result of importing one instrument
type ImportResult struct {
	Code     string
	BarCount int
	Error    error
}

// Import loads the source once and writes each instrument's bars concurrently
func (c *Collector) Import(ctx context.Context, req s0_data.Request, cfg Config) ([]ImportResult, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	md, err := c.source.Load(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.source.Name(), err)
	}

	c.logger.WithFields(map[string]interface{}{
		"source":      c.source.Name(),
		"instruments": md.Prices.Cols(),
		"dates":       md.Prices.Rows(),
		"workers":     cfg.Workers,
	}).Info("Starting import")

	if md.Sectors != nil {
		if err := c.sink.SaveSectors(ctx, latestLabels(md.Sectors)); err != nil {
			return nil, fmt.Errorf("save sectors: %w", err)
		}
	}

	codes := md.Prices.Columns
	resultCh := make(chan ImportResult, len(codes))
	codeCh := make(chan string, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, md.Prices, codeCh, resultCh)
		}(i)
	}

	for _, code := range codes {
		codeCh <- code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]ImportResult, 0, len(codes))
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": len(results) - failCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Import completed")

	return results, nil
}

func (c *Collector) worker(ctx context.Context, workerID int, prices *contracts.Matrix, codeCh <-chan string, resultCh chan<- ImportResult) {
	for code := range codeCh {
		if err := ctx.Err(); err != nil {
			resultCh <- ImportResult{Code: code, Error: err}
			continue
		}

		bars := s0_data.BarsFromPanel(prices.SelectColumns([]string{code}), nil)
		if err := c.sink.SaveBars(ctx, bars); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"code":   code,
			}).Error("Failed to save bars")
			resultCh <- ImportResult{Code: code, BarCount: len(bars), Error: err}
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"code":   code,
			"count":  len(bars),
		}).Debug("Imported bars")

		resultCh <- ImportResult{Code: code, BarCount: len(bars)}
	}
}

func latestLabels(l *contracts.LabelMatrix) map[string]string {
	out := make(map[string]string, len(l.Columns))
	if l.Rows() == 0 {
		return out
	}
	last := l.Row(l.Rows() - 1)
	for j, code := range l.Columns {
		if last[j] != "" {
			out[code] = last[j]
		}
	}
	return out
}
