package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
)

// Inputs are the fully materialized market data for one run
type Inputs struct {
	Prices   *contracts.Matrix      // required
	Returns  *contracts.Matrix      // optional; derived from filled prices when nil
	Sectors  *contracts.LabelMatrix // optional; required by sector-based aggregation
	Universe *contracts.Universe    // optional; every priced instrument when nil
}

// aligned is the narrowed, filled view of Inputs the stages run on
type aligned struct {
	dates   []time.Time
	columns []string
	prices  *contracts.Matrix
	returns *contracts.Matrix
	sectors *contracts.LabelMatrix
	member  [][]bool // nil when every instrument is always eligible
}

// prepare narrows every input to the shared date and instrument axes
//
// An empty data-axis intersection is a configuration error. A universe that
// excludes every instrument is not: the run completes with zero weights.
func prepare(in Inputs, maxFillDays int) (*aligned, error) {
	if in.Prices == nil {
		return nil, fmt.Errorf("%w: prices are required", contracts.ErrInvalidConfiguration)
	}
	if err := in.Prices.Validate(); err != nil {
		return nil, fmt.Errorf("%w: prices: %v", contracts.ErrInvalidConfiguration, err)
	}

	columnSets := [][]string{}
	dateSets := [][]time.Time{}
	if in.Returns != nil {
		if err := in.Returns.Validate(); err != nil {
			return nil, fmt.Errorf("%w: returns: %v", contracts.ErrInvalidConfiguration, err)
		}
		columnSets = append(columnSets, in.Returns.Columns)
		dateSets = append(dateSets, in.Returns.Dates)
	}
	if in.Sectors != nil {
		columnSets = append(columnSets, in.Sectors.Columns)
	}

	columns := contracts.IntersectColumns(in.Prices.Columns, columnSets...)
	dates := contracts.IntersectDates(in.Prices.Dates, dateSets...)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: price/return/sector inputs share no instruments", contracts.ErrInvalidConfiguration)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: price/return inputs share no dates", contracts.ErrInvalidConfiguration)
	}

	// universe narrowing may legitimately leave nothing
	if in.Universe != nil {
		columns = contracts.IntersectColumns(columns, in.Universe.Codes())
	}

	a := &aligned{dates: dates, columns: columns}

	// returns are derived from the full price history before date narrowing
	prices := in.Prices.SelectColumns(columns)
	if maxFillDays > 0 {
		prices = prices.FillForward(maxFillDays)
	}
	if in.Returns != nil {
		a.returns = in.Returns.Reindex(dates).SelectColumns(columns)
	} else {
		a.returns = prices.PctChange(1).Reindex(dates)
	}
	a.prices = prices.Reindex(dates)

	if in.Sectors != nil {
		a.sectors = in.Sectors.AsOf(dates).SelectColumns(columns)
	}
	if in.Universe != nil && in.Universe.Membership != nil {
		a.member = membershipMask(in.Universe.Membership, dates, columns)
	}

	return a, nil
}

// membershipMask expands a membership grid onto dates × columns using the
// latest membership row at or before each date
func membershipMask(membership *contracts.Matrix, dates []time.Time, columns []string) [][]bool {
	grid := membership.SelectColumns(columns)
	mask := make([][]bool, len(dates))

	src := -1
	for i, d := range dates {
		for src+1 < len(grid.Dates) && !grid.Dates[src+1].After(d) {
			src++
		}
		mask[i] = make([]bool, len(columns))
		if src < 0 {
			continue
		}
		for j, v := range grid.Values[src] {
			mask[i][j] = !math.IsNaN(v) && v > 0
		}
	}
	return mask
}

// densify spreads rebalance-date weights over the daily index
// ⭐ SSOT: 리밸런싱 사이 보유 비중 결정 (FORWARD / ZERO)
//
// Dates before the first rebalance hold nothing.
func densify(weights *contracts.Matrix, dates []time.Time, fill HoldingFill) *contracts.Matrix {
	dense := contracts.NewMatrixFilled(dates, weights.Columns, 0)

	src := -1
	for i, d := range dates {
		for src+1 < len(weights.Dates) && !weights.Dates[src+1].After(d) {
			src++
		}
		if src < 0 {
			continue
		}
		if fill == FillZero && !weights.Dates[src].Equal(d) {
			continue
		}
		for j, w := range weights.Values[src] {
			if !math.IsNaN(w) {
				dense.Set(i, j, w)
			}
		}
	}
	return dense
}

// accumulate turns dense decision weights into the held book and gross returns
// ⭐ SSOT: 시점 정렬(look-ahead 방지) 및 수익 누적은 여기서만
//
//   - LAG_WEIGHTS:    held[t] = dense[t-1], gross[t] = Σ held[t]·r[t]
//   - FORWARD_RETURN: held[t] = dense[t],   gross[t] = Σ held[t]·r[t+1]
//
// Missing returns contribute nothing.
func accumulate(dense, returns *contracts.Matrix, policy Alignment) (held, realized *contracts.Matrix, gross *contracts.Series) {
	held, realized = dense, returns
	switch policy {
	case ForwardReturn:
		realized = returns.Shift(-1)
	default:
		held = dense.Shift(1).FillNaN(0)
	}

	gross = contracts.NewSeries(dense.Dates)
	for i := range gross.Values {
		sum := 0.0
		for j, w := range held.Values[i] {
			r := realized.Values[i][j]
			if w == 0 || math.IsNaN(r) {
				continue
			}
			sum += w * r
		}
		gross.Values[i] = sum
	}
	return held, realized, gross
}

// compound builds the equity curve from net returns, starting from 1.0
func compound(net *contracts.Series) *contracts.Series {
	equity := contracts.NewSeries(net.Dates)
	level := 1.0
	for i, r := range net.Values {
		level *= 1 + r
		equity.Values[i] = level
	}
	return equity
}
