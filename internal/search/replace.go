package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// InvalidRangeError reports ranges that cannot be applied to a text: out of
// bounds, reversed, overlapping, or computed against another snapshot. It is
// a caller bug and is never recovered locally.
type InvalidRangeError struct {
	Range  textrange.Range
	Length int
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %s for text of length %d: %s", e.Range, e.Length, e.Reason)
}

// Replace returns text with every range replaced by replacement.
//
// Ranges are applied in ascending order by walking the original text once and
// copying the untouched spans between them. Touching ranges (one ends where
// the next begins) are allowed and spliced left to right.
func Replace(text string, ranges []textrange.Range, replacement string) (string, error) {
	if len(ranges) == 0 {
		return text, nil
	}

	runes := []rune(text)
	n := len(runes)

	sorted := make([]textrange.Range, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From < sorted[j].From
	})

	prevEnd := 0
	for i, r := range sorted {
		if !r.Within(n) {
			return "", &InvalidRangeError{Range: r, Length: n, Reason: "out of bounds"}
		}
		if i > 0 && r.From < prevEnd {
			return "", &InvalidRangeError{Range: r, Length: n, Reason: "overlaps previous range"}
		}
		prevEnd = r.To
	}

	var b strings.Builder
	b.Grow(len(text) + len(sorted)*len(replacement))

	cursor := 0
	for _, r := range sorted {
		b.WriteString(string(runes[cursor:r.From]))
		b.WriteString(replacement)
		cursor = r.To
	}
	b.WriteString(string(runes[cursor:]))

	return b.String(), nil
}

// ReplaceResult applies a subset of a result's ranges to text. The result must
// have been computed against text; a stale result is rejected.
func ReplaceResult(text string, res *Result, ranges []textrange.Range, replacement string) (string, error) {
	if !res.ValidFor(text) {
		r := textrange.Range{}
		if len(ranges) > 0 {
			r = ranges[0]
		}
		return "", &InvalidRangeError{Range: r, Length: textrange.Length(text), Reason: "ranges computed against a different text"}
	}
	return Replace(text, ranges, replacement)
}
