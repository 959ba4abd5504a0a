package contracts

import (
	"encoding/json"
	"math"
	"time"
)

// JSON carries NaN as null; encoding/json rejects NaN floats.

type matrixJSON struct {
	Dates   []time.Time  `json:"dates"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

type seriesJSON struct {
	Dates  []time.Time `json:"dates"`
	Values []*float64  `json:"values"`
}

func encodeFloats(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}

func decodeFloats(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (m *Matrix) MarshalJSON() ([]byte, error) {
	raw := matrixJSON{Dates: m.Dates, Columns: m.Columns, Values: make([][]*float64, len(m.Values))}
	for i, row := range m.Values {
		raw.Values[i] = encodeFloats(row)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Dates, m.Columns = raw.Dates, raw.Columns
	m.Values = make([][]float64, len(raw.Values))
	for i, row := range raw.Values {
		m.Values[i] = decodeFloats(row)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (s *Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{Dates: s.Dates, Values: encodeFloats(s.Values)})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw seriesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Dates, s.Values = raw.Dates, decodeFloats(raw.Values)
	return nil
}
