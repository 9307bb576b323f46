package server

import (
	"log/slog"
	"net/http"

	"github.com/leapstack-labs/querycomposer/internal/search"
)

const prefsCookie = "composer-prefs"

const (
	prefCaseSensitive = "search.case_sensitive"
	prefUseRegex      = "search.use_regex"
	prefWholeWord     = "search.whole_word"
)

// searchOptions returns the search options stored in the request's cookie.
// A missing or unreadable cookie yields the zero options.
func (s *Server) searchOptions(r *http.Request) search.Options {
	sess, err := s.cookies.Get(r, prefsCookie)
	if err != nil {
		s.logger.Debug("ignoring preferences cookie", slog.String("error", err.Error()))
	}
	flag := func(key string) bool {
		v, _ := sess.Values[key].(bool)
		return v
	}
	return search.Options{
		CaseSensitive: flag(prefCaseSensitive),
		UseRegex:      flag(prefUseRegex),
		WholeWord:     flag(prefWholeWord),
	}
}

func (s *Server) saveSearchOptions(w http.ResponseWriter, r *http.Request, opts search.Options) {
	sess, _ := s.cookies.Get(r, prefsCookie)
	sess.Values[prefCaseSensitive] = opts.CaseSensitive
	sess.Values[prefUseRegex] = opts.UseRegex
	sess.Values[prefWholeWord] = opts.WholeWord
	if err := sess.Save(r, w); err != nil {
		s.logger.Warn("failed to save preferences", slog.String("error", err.Error()))
	}
}
