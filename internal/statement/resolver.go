// Package statement maps a text selection onto complete SQL statements.
package statement

import (
	"log/slog"

	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// Oracle finds statement boundaries. Given text and a range it returns the
// smallest range covering all complete statements intersecting the input, or
// nil when it cannot tell.
type Oracle interface {
	EnclosingStatementRange(text string, r textrange.Range) (*textrange.Range, error)
}

// Resolver picks the text to execute for a given selection.
type Resolver struct {
	oracle Oracle
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil oracle uses the built-in Splitter.
func NewResolver(oracle Oracle, logger *slog.Logger) *Resolver {
	if oracle == nil {
		oracle = NewSplitter()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{oracle: oracle, logger: logger}
}

// Resolve returns the text to run. Without a selection, or with one spanning
// the whole text, the full text is returned. Otherwise the selection grows to
// the complete statements it touches. Any oracle failure falls back to the
// full text; Resolve never fails a run.
func (r *Resolver) Resolve(text string, sel *textrange.Range) string {
	if sel == nil {
		return text
	}

	n := textrange.Length(text)
	if !sel.Within(n) {
		r.logger.Debug("selection outside text, using full text", "selection", sel.String(), "length", n)
		return text
	}
	if sel.From == 0 && sel.To == n {
		return text
	}

	rng, err := r.oracle.EnclosingStatementRange(text, *sel)
	if err != nil {
		r.logger.Debug("statement lookup failed, using full text", "error", err)
		return text
	}
	if rng == nil || !rng.Within(n) {
		r.logger.Debug("no statement boundary, using full text", "selection", sel.String())
		return text
	}
	// An empty statement at the cursor means there is nothing meaningful
	// selected.
	if rng.Empty() {
		return text
	}

	return textrange.Slice(text, *rng)
}
