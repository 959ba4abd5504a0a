package s0_data

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// BarRecord is the Parquet schema for daily bars
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	Close     float64 `parquet:"close"`
	Sector    string  `parquet:"sector,optional"`
}

// ParquetProvider loads long-format bars from a Parquet file or a directory of them
type ParquetProvider struct {
	path   string
	logger *logger.Logger
}

// NewParquetProvider creates a provider reading path (file or directory)
func NewParquetProvider(path string, log *logger.Logger) *ParquetProvider {
	return &ParquetProvider{path: path, logger: log}
}

// Name implements Provider
func (p *ParquetProvider) Name() string {
	return "parquet"
}

// Location implements Located
func (p *ParquetProvider) Location() string {
	return absPath(p.path)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Load implements Provider
func (p *ParquetProvider) Load(ctx context.Context, req Request) (*MarketData, error) {
	if req.Returns == ReturnsSupplied {
		return nil, fmt.Errorf("%w: parquet bars do not carry a return panel", contracts.ErrInvalidConfiguration)
	}

	files, err := p.files()
	if err != nil {
		return nil, err
	}

	var records []BarRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := parquet.ReadFile[BarRecord](f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		records = append(records, rows...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no bars found under %s", p.path)
	}

	md := FromBars(records, req)

	p.logger.WithFields(map[string]interface{}{
		"path":        p.path,
		"files":       len(files),
		"bars":        len(records),
		"dates":       md.Prices.Rows(),
		"instruments": md.Prices.Cols(),
	}).Info("Loaded Parquet market data")

	return md, nil
}

func (p *ParquetProvider) files() ([]string, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p.path, err)
	}
	if !info.IsDir() {
		return []string{p.path}, nil
	}

	var files []string
	err = filepath.WalkDir(p.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FromBars pivots long bar records into market data.
// A later record for the same symbol and date replaces an earlier one.
func FromBars(records []BarRecord, req Request) *MarketData {
	closes := make(map[string]map[time.Time]float64)
	opens := make(map[string]map[time.Time]float64)
	sectors := make(map[string]map[time.Time]string)

	for _, r := range records {
		d := barDate(r.Timestamp)
		if closes[r.Symbol] == nil {
			closes[r.Symbol] = make(map[time.Time]float64)
			opens[r.Symbol] = make(map[time.Time]float64)
			sectors[r.Symbol] = make(map[time.Time]string)
		}
		closes[r.Symbol][d] = r.Close
		opens[r.Symbol][d] = r.Open
		if r.Sector != "" {
			sectors[r.Symbol][d] = r.Sector
		}
	}

	md := &MarketData{Prices: pivot(closes)}
	if req.Returns == ReturnsOpenToOpen {
		md.Returns = openToOpenReturns(pivot(opens))
	}
	md.Sectors = pivotLabels(sectors, md.Prices)
	return finish(md, req)
}

// WriteBars writes bar records to a Parquet file
func WriteBars(path string, records []BarRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func barDate(ms int64) time.Time {
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// pivotLabels builds a dated sector grid; nil when no bar carries a sector
func pivotLabels(records map[string]map[time.Time]string, axes *contracts.Matrix) *contracts.LabelMatrix {
	found := false
	for _, byDate := range records {
		if len(byDate) > 0 {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	labels := contracts.NewLabelMatrix(axes.Dates, axes.Columns)
	for j, code := range axes.Columns {
		for i, d := range axes.Dates {
			labels.Values[i][j] = records[code][d]
		}
	}
	// bars without a sector inherit the previous label
	return labels.AsOf(axes.Dates)
}
