package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Matrix is a date × instrument panel of float64 values.
// ⭐ SSOT: 가격/수익률/시그널/랭크/비중 행렬은 모두 이 타입으로 전달
//
// Dates are strictly increasing. NaN marks a missing observation.
type Matrix struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// NewMatrix creates a matrix with every cell set to NaN
func NewMatrix(dates []time.Time, columns []string) *Matrix {
	return NewMatrixFilled(dates, columns, math.NaN())
}

// NewMatrixFilled creates a matrix with every cell set to v
func NewMatrixFilled(dates []time.Time, columns []string, v float64) *Matrix {
	values := make([][]float64, len(dates))
	for i := range values {
		row := make([]float64, len(columns))
		for j := range row {
			row[j] = v
		}
		values[i] = row
	}

	return &Matrix{
		Dates:   append([]time.Time(nil), dates...),
		Columns: append([]string(nil), columns...),
		Values:  values,
	}
}

// Rows returns the number of dates
func (m *Matrix) Rows() int {
	return len(m.Dates)
}

// Cols returns the number of instruments
func (m *Matrix) Cols() int {
	return len(m.Columns)
}

// At returns the value at row i, column j
func (m *Matrix) At(i, j int) float64 {
	return m.Values[i][j]
}

// Set sets the value at row i, column j
func (m *Matrix) Set(i, j int, v float64) {
	m.Values[i][j] = v
}

// Row returns row i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []float64 {
	return m.Values[i]
}

// ColumnIndex returns the position of an instrument, or -1
func (m *Matrix) ColumnIndex(code string) int {
	for j, c := range m.Columns {
		if c == code {
			return j
		}
	}
	return -1
}

// RowIndex returns the position of a date, or -1
func (m *Matrix) RowIndex(date time.Time) int {
	i := sort.Search(len(m.Dates), func(k int) bool {
		return !m.Dates[k].Before(date)
	})
	if i < len(m.Dates) && m.Dates[i].Equal(date) {
		return i
	}
	return -1
}

// Validate checks that the value grid matches the axes and dates increase
func (m *Matrix) Validate() error {
	if len(m.Values) != len(m.Dates) {
		return fmt.Errorf("matrix has %d rows but %d dates", len(m.Values), len(m.Dates))
	}
	for i, row := range m.Values {
		if len(row) != len(m.Columns) {
			return fmt.Errorf("matrix row %d has %d values but %d columns", i, len(row), len(m.Columns))
		}
	}
	for i := 1; i < len(m.Dates); i++ {
		if !m.Dates[i].After(m.Dates[i-1]) {
			return fmt.Errorf("matrix dates not strictly increasing at %s", m.Dates[i].Format("2006-01-02"))
		}
	}
	return nil
}

// SameAxes reports whether both matrices share dates and columns
func (m *Matrix) SameAxes(o *Matrix) bool {
	if len(m.Dates) != len(o.Dates) || len(m.Columns) != len(o.Columns) {
		return false
	}
	for i := range m.Dates {
		if !m.Dates[i].Equal(o.Dates[i]) {
			return false
		}
	}
	for j := range m.Columns {
		if m.Columns[j] != o.Columns[j] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{
		Dates:   append([]time.Time(nil), m.Dates...),
		Columns: append([]string(nil), m.Columns...),
		Values:  make([][]float64, len(m.Values)),
	}
	for i, row := range m.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}

// Shift moves rows down by periods (positive) or up (negative).
// Row i of the result holds row i-periods of m; vacated rows are NaN.
func (m *Matrix) Shift(periods int) *Matrix {
	out := NewMatrix(m.Dates, m.Columns)
	for i := range out.Values {
		src := i - periods
		if src < 0 || src >= len(m.Values) {
			continue
		}
		copy(out.Values[i], m.Values[src])
	}
	return out
}

// FillForward carries the last observed value over NaN gaps.
// At most limit consecutive gaps are filled per column; limit <= 0 means unbounded.
func (m *Matrix) FillForward(limit int) *Matrix {
	out := m.Clone()
	for j := range out.Columns {
		last := math.NaN()
		run := 0
		for i := range out.Values {
			v := out.Values[i][j]
			if !math.IsNaN(v) {
				last = v
				run = 0
				continue
			}
			if math.IsNaN(last) {
				continue
			}
			run++
			if limit > 0 && run > limit {
				continue
			}
			out.Values[i][j] = last
		}
	}
	return out
}

// FillNaN replaces every NaN with v
func (m *Matrix) FillNaN(v float64) *Matrix {
	out := m.Clone()
	for _, row := range out.Values {
		for j, x := range row {
			if math.IsNaN(x) {
				row[j] = v
			}
		}
	}
	return out
}

// Reindex conforms the matrix to a new date axis. Dates absent from m are NaN rows.
func (m *Matrix) Reindex(dates []time.Time) *Matrix {
	out := NewMatrix(dates, m.Columns)
	lookup := dateLookup(m.Dates)
	for i, d := range dates {
		if src, ok := lookup[dateKey(d)]; ok {
			copy(out.Values[i], m.Values[src])
		}
	}
	return out
}

// SelectColumns conforms the matrix to a new instrument axis. Unknown columns are NaN.
func (m *Matrix) SelectColumns(columns []string) *Matrix {
	out := NewMatrix(m.Dates, columns)
	pos := make(map[string]int, len(m.Columns))
	for j, c := range m.Columns {
		pos[c] = j
	}
	for k, c := range columns {
		src, ok := pos[c]
		if !ok {
			continue
		}
		for i := range out.Values {
			out.Values[i][k] = m.Values[i][src]
		}
	}
	return out
}

// PctChange computes x[t]/x[t-periods] - 1 per column.
// The result is NaN when either side is missing or the base is zero.
func (m *Matrix) PctChange(periods int) *Matrix {
	out := NewMatrix(m.Dates, m.Columns)
	for i := periods; i < len(m.Values); i++ {
		if i-periods < 0 {
			continue
		}
		for j := range m.Columns {
			cur, base := m.Values[i][j], m.Values[i-periods][j]
			if math.IsNaN(cur) || math.IsNaN(base) || base == 0 {
				continue
			}
			out.Values[i][j] = cur/base - 1
		}
	}
	return out
}

// RowSums sums each row across instruments, skipping NaN
func (m *Matrix) RowSums() *Series {
	out := NewSeries(m.Dates)
	for i, row := range m.Values {
		sum := 0.0
		for _, v := range row {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		out.Values[i] = sum
	}
	return out
}

// CountValid returns the number of non-NaN entries in each row
func (m *Matrix) CountValid() *Series {
	out := NewSeries(m.Dates)
	for i, row := range m.Values {
		n := 0
		for _, v := range row {
			if !math.IsNaN(v) {
				n++
			}
		}
		out.Values[i] = float64(n)
	}
	return out
}

// Mask sets cells to NaN wherever keep returns false
func (m *Matrix) Mask(keep func(i, j int) bool) *Matrix {
	out := m.Clone()
	for i, row := range out.Values {
		for j := range row {
			if !keep(i, j) {
				row[j] = math.NaN()
			}
		}
	}
	return out
}

func dateKey(t time.Time) int64 {
	return t.UnixNano()
}

func dateLookup(dates []time.Time) map[int64]int {
	lookup := make(map[int64]int, len(dates))
	for i, d := range dates {
		lookup[dateKey(d)] = i
	}
	return lookup
}
