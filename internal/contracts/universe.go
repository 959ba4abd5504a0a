package contracts

import (
	"math"
	"time"
)

// Universe restricts which instruments are eligible
// ⭐ SSOT: S1 → 엔진 투자 가능 종목 전달
//
// Instruments is the static set. Membership, when present, is a date ×
// instrument grid where a value > 0 means the instrument is a member on that
// date; it narrows the static set further.
type Universe struct {
	Instruments []string          `json:"instruments"`
	Membership  *Matrix           `json:"membership,omitempty"`
	Excluded    map[string]string `json:"excluded,omitempty"` // code: reason
}

// NewStaticUniverse creates a universe with a fixed instrument set
func NewStaticUniverse(codes []string) *Universe {
	return &Universe{
		Instruments: append([]string(nil), codes...),
		Excluded:    make(map[string]string),
	}
}

// Codes returns every instrument that is ever eligible
func (u *Universe) Codes() []string {
	if len(u.Instruments) > 0 {
		return u.Instruments
	}
	if u.Membership == nil {
		return nil
	}

	codes := make([]string, 0, len(u.Membership.Columns))
	for j, code := range u.Membership.Columns {
		for i := range u.Membership.Values {
			if u.Membership.Values[i][j] > 0 {
				codes = append(codes, code)
				break
			}
		}
	}
	return codes
}

// Contains checks if an instrument is ever eligible
func (u *Universe) Contains(code string) bool {
	return containsString(u.Codes(), code)
}

// IsMember checks eligibility of an instrument on a date.
// Without a membership grid, every instrument in the static set is a member.
// A date before the first membership row is treated as non-member.
func (u *Universe) IsMember(date time.Time, code string) bool {
	if len(u.Instruments) > 0 && !containsString(u.Instruments, code) {
		return false
	}
	if u.Membership == nil {
		return containsString(u.Codes(), code)
	}

	j := u.Membership.ColumnIndex(code)
	if j < 0 {
		return false
	}
	row := -1
	for i, d := range u.Membership.Dates {
		if d.After(date) {
			break
		}
		row = i
	}
	if row < 0 {
		return false
	}
	v := u.Membership.Values[row][j]
	return !math.IsNaN(v) && v > 0
}

// IsExcluded checks if a code was excluded with reason
func (u *Universe) IsExcluded(code string) (bool, string) {
	reason, exists := u.Excluded[code]
	return exists, reason
}

// Count returns the number of eligible instruments
func (u *Universe) Count() int {
	return len(u.Codes())
}
