// Package walk holds the travel-time rules behind the walking access map:
// combining per-destination times for a selection and formatting them for
// display.
package walk

import (
	"math"
	"slices"
	"strings"
)

// NotApplicable is the aggregate travel time when no destination is selected,
// or when none of the selected destinations has a value. It classifies into
// the top ("over range") bucket of the travel-time scheme.
const NotApplicable = 999.0

// Times maps a destination category to walking minutes. A missing key means
// the travel time is unknown.
type Times map[string]float64

// Minutes returns the travel time to dest and whether it is known.
func (t Times) Minutes(dest string) (float64, bool) {
	v, ok := t[dest]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Selection is an ordered set of destination names.
type Selection []string

// NewSelection builds a selection, dropping blanks and duplicates while
// keeping first-seen order.
func NewSelection(names ...string) Selection {
	sel := make(Selection, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || slices.Contains(sel, n) {
			continue
		}
		sel = append(sel, n)
	}
	return sel
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s) == 0 }

// Key returns an order-independent cache key for the selection.
func (s Selection) Key() string {
	sorted := slices.Clone([]string(s))
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}

// Within returns the selected names that appear in known, ordered as in known.
func (s Selection) Within(known []string) Selection {
	out := make(Selection, 0, len(s))
	for _, k := range known {
		if slices.Contains(s, k) {
			out = append(out, k)
		}
	}
	return out
}

// Aggregate returns the representative travel time for a record: the maximum
// over the selected destinations. Unknown destinations are skipped. An empty
// selection, or one where every destination is unknown, yields NotApplicable.
func Aggregate(times Times, selected Selection) float64 {
	tt, found := 0.0, false
	for _, name := range selected {
		v, ok := times.Minutes(name)
		if !ok {
			continue
		}
		if !found || v > tt {
			tt = v
		}
		found = true
	}
	if !found {
		return NotApplicable
	}
	return tt
}
