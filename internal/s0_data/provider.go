package s0_data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// ReturnsMode selects how per-instrument returns are produced
type ReturnsMode string

const (
	// ReturnsCloseToClose leaves returns to the engine (close pct change)
	ReturnsCloseToClose ReturnsMode = "close_to_close"
	// ReturnsOpenToOpen derives returns from consecutive opens.
	// The return on date t is open[t+1]/open[t]-1: a book formed after the
	// close of t-1 is filled at open[t] and earns nothing before that.
	// The last date has no next open and is NaN.
	ReturnsOpenToOpen ReturnsMode = "open_to_open"
	// ReturnsSupplied reads a return panel from the source
	ReturnsSupplied ReturnsMode = "supplied"
)

// ParseReturnsMode parses a returns mode; empty means close-to-close
func ParseReturnsMode(s string) (ReturnsMode, error) {
	switch ReturnsMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReturnsCloseToClose:
		return ReturnsCloseToClose, nil
	case ReturnsOpenToOpen:
		return ReturnsOpenToOpen, nil
	case ReturnsSupplied:
		return ReturnsSupplied, nil
	}
	return "", fmt.Errorf("%w: unknown returns mode %q", contracts.ErrInvalidConfiguration, s)
}

// Request describes the market data one run needs
type Request struct {
	Start       time.Time   `json:"start"` // zero = unbounded
	End         time.Time   `json:"end"`   // zero = unbounded
	Instruments []string    `json:"instruments,omitempty"`
	Benchmark   string      `json:"benchmark,omitempty"`
	Returns     ReturnsMode `json:"returns"`
}

// Key identifies a request for caching
func (r Request) Key() string {
	return r.KeyAt("")
}

// KeyAt identifies a request against one source location (directory, file)
func (r Request) KeyAt(location string) string {
	data, _ := json.Marshal(r)
	h := sha256.New()
	h.Write([]byte(location))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// MarketData is everything a backtest consumes from a source
// ⭐ SSOT: S0 → 엔진 입력 번들
type MarketData struct {
	Prices    *contracts.Matrix      `json:"prices"`
	Returns   *contracts.Matrix      `json:"returns,omitempty"` // nil = close-to-close from prices
	Sectors   *contracts.LabelMatrix `json:"sectors,omitempty"`
	Universe  *contracts.Universe    `json:"universe,omitempty"`
	Benchmark *contracts.Series      `json:"benchmark,omitempty"` // daily benchmark returns
}

// Provider loads market data from one source
type Provider interface {
	Name() string
	Load(ctx context.Context, req Request) (*MarketData, error)
}

// window keeps rows within [start, end]; zero bounds are open
func window(m *contracts.Matrix, start, end time.Time) *contracts.Matrix {
	if m == nil || (start.IsZero() && end.IsZero()) {
		return m
	}
	return m.Reindex(datesWithin(m.Dates, start, end))
}

func datesWithin(dates []time.Time, start, end time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// restrict narrows a panel to the requested instruments, when any are named
func restrict(m *contracts.Matrix, instruments []string) *contracts.Matrix {
	if m == nil || len(instruments) == 0 {
		return m
	}
	return m.SelectColumns(contracts.IntersectColumns(instruments, m.Columns))
}

// openToOpenReturns labels each open-to-open move by the open it starts from
func openToOpenReturns(opens *contracts.Matrix) *contracts.Matrix {
	return opens.PctChange(1).Shift(-1)
}

// benchmarkReturns turns a benchmark close column into daily returns
func benchmarkReturns(closes *contracts.Matrix, code string) *contracts.Series {
	j := closes.ColumnIndex(code)
	if j < 0 {
		return nil
	}
	out := contracts.NewSeries(closes.Dates)
	for i := range out.Values {
		out.Values[i] = math.NaN()
		if i == 0 {
			continue
		}
		cur, prev := closes.At(i, j), closes.At(i-1, j)
		if math.IsNaN(cur) || math.IsNaN(prev) || prev == 0 {
			continue
		}
		out.Values[i] = cur/prev - 1
	}
	return out
}

// finish applies the request window and drops the benchmark from the tradable panel
func finish(md *MarketData, req Request) *MarketData {
	if req.Benchmark != "" && md.Benchmark == nil && md.Prices != nil {
		md.Benchmark = benchmarkReturns(md.Prices, req.Benchmark)
	}
	if md.Benchmark != nil && (!req.Start.IsZero() || !req.End.IsZero()) {
		md.Benchmark = md.Benchmark.Reindex(datesWithin(md.Benchmark.Dates, req.Start, req.End), math.NaN())
	}
	if req.Benchmark != "" && md.Prices != nil && md.Prices.ColumnIndex(req.Benchmark) >= 0 {
		md.Prices = md.Prices.SelectColumns(without(md.Prices.Columns, req.Benchmark))
	}

	md.Prices = window(restrict(md.Prices, req.Instruments), req.Start, req.End)
	md.Returns = window(restrict(md.Returns, req.Instruments), req.Start, req.End)
	return md
}

func without(columns []string, drop string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}

// pivot collects long records into a wide date × instrument panel
func pivot(records map[string]map[time.Time]float64) *contracts.Matrix {
	columns := make([]string, 0, len(records))
	dateSet := make(map[time.Time]struct{})
	for code, byDate := range records {
		columns = append(columns, code)
		for d := range byDate {
			dateSet[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	dates = contracts.IntersectDates(dates)
	sort.Strings(columns)

	m := contracts.NewMatrix(dates, columns)
	for i, d := range dates {
		for j, code := range columns {
			if v, ok := records[code][d]; ok {
				m.Set(i, j, v)
			}
		}
	}
	return m
}
