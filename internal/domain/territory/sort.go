package territory

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortForReport orders territories by the numeric value of their id,
// falling back to Spanish collation for equal numbers and non-numeric ids.
// Numeric ids come before non-numeric ones.
// INVARIANT: list is not mutated; the sort is stable
func SortForReport(list []Territory) []Territory {
	out := make([]Territory, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	col := collate.New(language.Spanish)
	sort.SliceStable(out, func(i, j int) bool {
		return lessID(col, out[i].ID, out[j].ID)
	})
	return out
}

func lessID(col *collate.Collator, a, b string) bool {
	na, okA := numericPrefix(a)
	nb, okB := numericPrefix(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	}
	return col.CompareString(a, b) < 0
}

// numericPrefix parses the leading integer of an id ("12", "12-B", " 7").
func numericPrefix(id string) (int64, bool) {
	s := strings.TrimSpace(id)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
