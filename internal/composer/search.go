package composer

import (
	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// Search scans the current buffer and keeps the query active: every later
// buffer change re-runs it so the matches stay valid.
func (s *Session) Search(query string, opts search.Options) (*search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := search.Run(s.buffer.Read(), query, opts)
	if err != nil {
		s.matches = nil
		return nil, err
	}
	s.matches = res
	return res, nil
}

// Matches returns the active search result, or nil.
func (s *Session) Matches() *search.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches
}

// ClearSearch drops the active search.
func (s *Session) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = nil
}

func (s *Session) refreshSearchLocked() {
	if s.matches == nil {
		return
	}
	res, err := search.Run(s.buffer.Read(), s.matches.Query, s.matches.Options)
	if err != nil {
		s.logger.Debug("search refresh failed", "error", err)
		s.matches = nil
		return
	}
	s.matches = res
}

// Replace replaces the given ranges of the active result with replacement.
// The ranges must come from the current result; anything else is rejected
// with a *search.InvalidRangeError.
func (s *Session) Replace(ranges []textrange.Range, replacement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ranges, replacement)
}

// ReplaceAll replaces every match of the active result.
func (s *Session) ReplaceAll(replacement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ranges []textrange.Range
	if s.matches != nil {
		ranges = s.matches.Ranges
	}
	return s.replaceLocked(ranges, replacement)
}

func (s *Session) replaceLocked(ranges []textrange.Range, replacement string) error {
	out, err := search.ReplaceResult(s.buffer.Read(), s.matches, ranges, replacement)
	if err != nil {
		return err
	}
	s.writeBufferLocked(out)
	return nil
}
