// Package textrange defines character ranges over a text snapshot.
//
// Offsets are rune offsets, not byte offsets, so a range computed against a
// string stays meaningful for multi-byte input.
package textrange

import "fmt"

// Range is a half-open [From, To) span of rune offsets into one text snapshot.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// New returns the range [from, to).
func New(from, to int) Range {
	return Range{From: from, To: to}
}

// Len returns the number of runes covered by the range.
func (r Range) Len() int {
	return r.To - r.From
}

// Empty reports whether the range is zero-width (a cursor position).
func (r Range) Empty() bool {
	return r.From == r.To
}

// Within reports whether the range is well-formed for a text of n runes.
func (r Range) Within(n int) bool {
	return r.From >= 0 && r.From <= r.To && r.To <= n
}

// Overlaps reports whether two non-empty ranges share at least one rune.
func (r Range) Overlaps(o Range) bool {
	return r.From < o.To && o.From < r.To
}

// Touches reports whether the cursor-or-span r lies inside or on the edge of o.
func (r Range) Touches(o Range) bool {
	if r.Empty() {
		return o.From <= r.From && r.From <= o.To
	}
	return r.Overlaps(o)
}

func (r Range) String() string {
	return fmt.Sprintf("(%d,%d)", r.From, r.To)
}

// Slice returns the substring of text covered by r. The caller must make sure
// r is within the text.
func Slice(text string, r Range) string {
	runes := []rune(text)
	return string(runes[r.From:r.To])
}

// Length returns the rune length of text.
func Length(text string) int {
	n := 0
	for range text {
		n++
	}
	return n
}
