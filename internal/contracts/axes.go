package contracts

import (
	"sort"
	"time"
)

// IntersectColumns returns the codes present in every list, in the order of the first list
func IntersectColumns(first []string, others ...[]string) []string {
	out := make([]string, 0, len(first))
	for _, code := range first {
		keep := true
		for _, other := range others {
			if !containsString(other, code) {
				keep = false
				break
			}
		}
		if keep && !containsString(out, code) {
			out = append(out, code)
		}
	}
	return out
}

// IntersectDates returns the dates present in every axis, in increasing order
func IntersectDates(first []time.Time, others ...[]time.Time) []time.Time {
	lookups := make([]map[int64]int, len(others))
	for k, other := range others {
		lookups[k] = dateLookup(other)
	}

	out := make([]time.Time, 0, len(first))
	for _, d := range first {
		keep := true
		for _, lookup := range lookups {
			if _, ok := lookup[dateKey(d)]; !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortStrings(s []string) {
	sort.Strings(s)
}
