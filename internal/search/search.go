// Package search finds and replaces text by character range.
//
// Search returns match ranges against one exact text snapshot. Replace
// consumes ranges computed against that same snapshot and rebuilds the text in
// a single pass, so earlier replacements never shift later offsets.
package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// ErrInvalidPattern is returned when a regex search string does not compile.
var ErrInvalidPattern = errors.New("invalid search pattern")

// MatchTimeout bounds a single regex evaluation.
const MatchTimeout = time.Second

// Options controls how a search string is matched.
type Options struct {
	CaseSensitive bool `json:"caseSensitive"`
	UseRegex      bool `json:"useRegex"`
	WholeWord     bool `json:"wholeWord"`
}

// Compile builds the matcher for a search string. Literal strings are escaped,
// whole-word matching wraps the pattern in word boundaries.
func Compile(query string, opts Options) (*regexp2.Regexp, error) {
	pattern := query
	if !opts.UseRegex {
		pattern = regexp2.Escape(pattern)
	}
	if opts.WholeWord {
		pattern = `\b(?:` + pattern + `)\b`
	}

	var flags regexp2.RegexOptions = regexp2.ECMAScript
	if !opts.CaseSensitive {
		flags |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	re.MatchTimeout = MatchTimeout
	return re, nil
}

// Search returns all non-overlapping matches of query in text, left to right.
// An empty query yields no matches. Zero-width regex matches are skipped.
func Search(text, query string, opts Options) ([]textrange.Range, error) {
	if query == "" {
		return nil, nil
	}

	re, err := Compile(query, opts)
	if err != nil {
		return nil, err
	}

	var ranges []textrange.Range
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		if m.Length > 0 {
			ranges = append(ranges, textrange.New(m.Index, m.Index+m.Length))
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return ranges, nil
}

// Result ties match ranges to the text they were computed against.
type Result struct {
	Snapshot string            `json:"-"`
	Query    string            `json:"query"`
	Options  Options           `json:"options"`
	Ranges   []textrange.Range `json:"ranges"`
}

// Run searches text and returns the ranges bound to that snapshot.
func Run(text, query string, opts Options) (*Result, error) {
	ranges, err := Search(text, query, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Snapshot: text, Query: query, Options: opts, Ranges: ranges}, nil
}

// ValidFor reports whether the result was computed against text.
func (r *Result) ValidFor(text string) bool {
	return r != nil && r.Snapshot == text
}
