package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// CSV file names inside a data directory
const (
	PricesFile    = "prices.csv"
	OpensFile     = "opens.csv"
	ReturnsFile   = "returns.csv"
	SectorsFile   = "sectors.csv"
	UniverseFile  = "universe.csv"
	BenchmarkFile = "benchmark.csv"
)

const dateLayout = "2006-01-02"

// CSVProvider loads wide date × instrument CSV files from a directory
//
//	prices.csv     date,AAPL,MSFT,...   (required)
//	opens.csv      same shape           (open_to_open)
//	returns.csv    same shape           (supplied)
//	sectors.csv    code,sector  or a wide date × instrument label grid
//	universe.csv   code list    or a wide 0/1 membership grid
//	benchmark.csv  date,<code>  benchmark closes
type CSVProvider struct {
	dir    string
	logger *logger.Logger
}

// NewCSVProvider creates a CSV provider rooted at dir
func NewCSVProvider(dir string, log *logger.Logger) *CSVProvider {
	return &CSVProvider{dir: dir, logger: log}
}

// Name implements Provider
func (p *CSVProvider) Name() string {
	return "csv"
}

// Location implements Located
func (p *CSVProvider) Location() string {
	return absPath(p.dir)
}

// Load implements Provider
func (p *CSVProvider) Load(ctx context.Context, req Request) (*MarketData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prices, err := p.readPanel(PricesFile)
	if err != nil {
		return nil, err
	}
	md := &MarketData{Prices: prices}

	switch req.Returns {
	case ReturnsSupplied:
		if md.Returns, err = p.readPanel(ReturnsFile); err != nil {
			return nil, err
		}
	case ReturnsOpenToOpen:
		opens, err := p.readPanel(OpensFile)
		if err != nil {
			return nil, err
		}
		md.Returns = openToOpenReturns(opens)
	}

	if md.Sectors, err = p.readSectors(prices.Dates); err != nil {
		return nil, err
	}
	if md.Universe, err = p.readUniverse(); err != nil {
		return nil, err
	}
	if req.Benchmark != "" {
		if bench, err := p.readOptionalPanel(BenchmarkFile); err != nil {
			return nil, err
		} else if bench != nil {
			md.Benchmark = benchmarkReturns(bench, req.Benchmark)
		}
	}

	md = finish(md, req)

	p.logger.WithFields(map[string]interface{}{
		"dir":         p.dir,
		"dates":       md.Prices.Rows(),
		"instruments": md.Prices.Cols(),
		"sectors":     md.Sectors != nil,
		"universe":    md.Universe != nil,
		"benchmark":   md.Benchmark != nil,
	}).Info("Loaded CSV market data")

	return md, nil
}

func (p *CSVProvider) path(name string) string {
	return filepath.Join(p.dir, name)
}

func (p *CSVProvider) readPanel(name string) (*contracts.Matrix, error) {
	f, err := os.Open(p.path(name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	m, err := ReadPanel(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return m, nil
}

func (p *CSVProvider) readOptionalPanel(name string) (*contracts.Matrix, error) {
	if _, err := os.Stat(p.path(name)); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return p.readPanel(name)
}

func (p *CSVProvider) readRecords(name string) ([][]string, error) {
	f, err := os.Open(p.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return records, nil
}

// readSectors accepts a static code,sector list or a dated label grid
func (p *CSVProvider) readSectors(dates []time.Time) (*contracts.LabelMatrix, error) {
	records, err := p.readRecords(SectorsFile)
	if err != nil || records == nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: empty file", SectorsFile)
	}

	if !isDateHeader(records[0]) {
		labels := make(map[string]string, len(records)-1)
		for _, rec := range records[1:] {
			if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
				continue
			}
			labels[strings.TrimSpace(rec[0])] = strings.TrimSpace(rec[1])
		}
		return contracts.StaticLabels(dates, labels), nil
	}

	columns := trimAll(records[0][1:])
	rowDates := make([]time.Time, 0, len(records)-1)
	rows := make([][]string, 0, len(records)-1)
	for n, rec := range records[1:] {
		d, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("read %s: line %d: %w", SectorsFile, n+2, err)
		}
		rowDates = append(rowDates, d)
		row := make([]string, len(columns))
		for j := range columns {
			if j+1 < len(rec) {
				row[j] = strings.TrimSpace(rec[j+1])
			}
		}
		rows = append(rows, row)
	}
	labels := contracts.NewLabelMatrix(rowDates, columns)
	labels.Values = rows
	return labels, nil
}

// readUniverse accepts a code list or a dated 0/1 membership grid
func (p *CSVProvider) readUniverse() (*contracts.Universe, error) {
	records, err := p.readRecords(UniverseFile)
	if err != nil || records == nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: empty file", UniverseFile)
	}

	if isDateHeader(records[0]) {
		f, err := os.Open(p.path(UniverseFile))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		grid, err := ReadPanel(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", UniverseFile, err)
		}
		return &contracts.Universe{Membership: grid, Excluded: make(map[string]string)}, nil
	}

	// a single header row is itself the instrument list
	codes := trimAll(records[0])
	if len(records) > 1 {
		codes = codes[:0]
		for _, rec := range records[1:] {
			if len(rec) > 0 && strings.TrimSpace(rec[0]) != "" {
				codes = append(codes, strings.TrimSpace(rec[0]))
			}
		}
	}
	return contracts.NewStaticUniverse(codes), nil
}

// ReadPanel parses a wide CSV whose first column is the date.
// Empty and non-numeric cells are missing values.
func ReadPanel(r io.Reader) (*contracts.Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs a date column and at least one instrument")
	}
	columns := trimAll(header[1:])

	var dates []time.Time
	var values [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(columns))
		for j := range columns {
			row[j] = math.NaN()
			if j+1 >= len(rec) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64); err == nil {
				row[j] = v
			}
		}
		dates = append(dates, d)
		values = append(values, row)
	}

	m := &contracts.Matrix{Dates: dates, Columns: columns, Values: values}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// WritePanel writes a matrix in the layout ReadPanel accepts
func WritePanel(w io.Writer, m *contracts.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"date"}, m.Columns...)); err != nil {
		return err
	}
	for i, d := range m.Dates {
		rec := make([]string, 0, len(m.Columns)+1)
		rec = append(rec, d.Format(dateLayout))
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSectors writes a static code,sector list sorted by code
func WriteSectors(w io.Writer, sectors map[string]string) error {
	codes := make([]string, 0, len(sectors))
	for code := range sectors {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "sector"}); err != nil {
		return err
	}
	for _, code := range codes {
		if err := cw.Write([]string{code, sectors[code]}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isDateHeader(header []string) bool {
	return len(header) > 1 && strings.EqualFold(strings.TrimSpace(header[0]), "date")
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
