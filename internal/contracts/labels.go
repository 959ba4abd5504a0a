package contracts

import "time"

// LabelMatrix holds categorical labels (sector codes) per date and instrument.
// An empty string marks a missing label.
type LabelMatrix struct {
	Dates   []time.Time `json:"dates"`
	Columns []string    `json:"columns"`
	Values  [][]string  `json:"values"`
}

// NewLabelMatrix creates an empty label matrix
func NewLabelMatrix(dates []time.Time, columns []string) *LabelMatrix {
	values := make([][]string, len(dates))
	for i := range values {
		values[i] = make([]string, len(columns))
	}
	return &LabelMatrix{
		Dates:   append([]time.Time(nil), dates...),
		Columns: append([]string(nil), columns...),
		Values:  values,
	}
}

// StaticLabels builds a label matrix where each instrument keeps one label on every date
func StaticLabels(dates []time.Time, labels map[string]string) *LabelMatrix {
	columns := make([]string, 0, len(labels))
	for code := range labels {
		columns = append(columns, code)
	}
	sortStrings(columns)

	out := NewLabelMatrix(dates, columns)
	for i := range out.Values {
		for j, code := range columns {
			out.Values[i][j] = labels[code]
		}
	}
	return out
}

// Rows returns the number of dates
func (l *LabelMatrix) Rows() int {
	return len(l.Dates)
}

// Row returns the labels on row i
func (l *LabelMatrix) Row(i int) []string {
	return l.Values[i]
}

// AsOf conforms labels to a new date axis using the latest label at or before each date
func (l *LabelMatrix) AsOf(dates []time.Time) *LabelMatrix {
	out := NewLabelMatrix(dates, l.Columns)
	src := -1
	for i, d := range dates {
		for src+1 < len(l.Dates) && !l.Dates[src+1].After(d) {
			src++
		}
		if src < 0 {
			continue
		}
		for j := range l.Columns {
			out.Values[i][j] = l.Values[src][j]
		}
		// carry a label across a later gap for the same instrument
		if i > 0 {
			for j := range l.Columns {
				if out.Values[i][j] == "" {
					out.Values[i][j] = out.Values[i-1][j]
				}
			}
		}
	}
	return out
}

// SelectColumns conforms labels to a new instrument axis; unknown instruments are empty
func (l *LabelMatrix) SelectColumns(columns []string) *LabelMatrix {
	out := NewLabelMatrix(l.Dates, columns)
	pos := make(map[string]int, len(l.Columns))
	for j, c := range l.Columns {
		pos[c] = j
	}
	for k, c := range columns {
		src, ok := pos[c]
		if !ok {
			continue
		}
		for i := range out.Values {
			out.Values[i][k] = l.Values[i][src]
		}
	}
	return out
}
