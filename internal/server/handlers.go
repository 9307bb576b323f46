package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/querycomposer/internal/composer"
	"github.com/leapstack-labs/querycomposer/internal/registry"
	"github.com/leapstack-labs/querycomposer/internal/search"
	"github.com/leapstack-labs/querycomposer/internal/store"
	"github.com/leapstack-labs/querycomposer/internal/textrange"
)

// QueryState is the composer view returned by GET /api/query.
type QueryState struct {
	Query       string           `json:"query"`
	EngineID    string           `json:"engineId"`
	ExecutionID string           `json:"executionId,omitempty"`
	Selection   *textrange.Range `json:"selection,omitempty"`
	Matches     *search.Result   `json:"matches,omitempty"`
}

// queryRequest replaces the buffer. Any previous selection is dropped unless
// a new one is sent along.
type queryRequest struct {
	Query     string           `json:"query"`
	Selection *textrange.Range `json:"selection,omitempty"`
}

type engineRequest struct {
	EngineID string `json:"engineId"`
}

// searchRequest carries a search. Without options the ones last used by
// the same browser apply.
type searchRequest struct {
	Query   string          `json:"query"`
	Options *search.Options `json:"options,omitempty"`
}

type replaceRequest struct {
	Ranges      []textrange.Range `json:"ranges"`
	Replacement string            `json:"replacement"`
	All         bool              `json:"all"`
}

type udfRequest struct {
	Script string `json:"script"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) view() QueryState {
	return QueryState{
		Query:       s.session.Buffer(),
		EngineID:    s.session.EngineID(),
		ExecutionID: s.session.ExecutionID(),
		Selection:   s.session.Selection(),
		Matches:     s.session.Matches(),
	}
}

func (s *Server) getQuery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) putQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	s.session.EditWithSelection(req.Query, req.Selection)
	writeJSON(w, http.StatusOK, s.view())
}

// putSelection accepts a range, or JSON null to clear the selection.
func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var sel *textrange.Range
	if !decode(w, r, &sel) {
		return
	}
	s.session.SetSelection(sel)
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) listEngines(w http.ResponseWriter, _ *http.Request) {
	engines := []registry.Engine{}
	if s.engines != nil {
		engines = s.engines.List()
	}
	writeJSON(w, http.StatusOK, engines)
}

func (s *Server) putEngine(w http.ResponseWriter, r *http.Request) {
	var req engineRequest
	if !decode(w, r, &req) {
		return
	}
	id := s.session.SelectEngine(req.EngineID)
	writeJSON(w, http.StatusOK, engineRequest{EngineID: id})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	id, err := s.session.Run(r.Context())
	if err != nil {
		var subErr *composer.SubmitError
		switch {
		case errors.Is(err, composer.ErrRunInFlight):
			writeError(w, http.StatusConflict, err)
		case errors.As(err, &subErr):
			writeError(w, http.StatusBadGateway, err)
		case errors.Is(err, composer.ErrNoEngine):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"executionId": id})
}

func (s *Server) closeExecution(w http.ResponseWriter, _ *http.Request) {
	s.session.CloseExecution()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clear(w http.ResponseWriter, _ *http.Request) {
	s.session.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// format rewrites the buffer as formatted SQL. Text with an unterminated
// quote or comment is rejected and left as is.
func (s *Server) format(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Format(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	opts := s.searchOptions(r)
	if req.Options != nil {
		opts = *req.Options
	}
	res, err := s.session.Search(req.Query, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Options != nil {
		s.saveSearchOptions(w, r, opts)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getSearchOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.searchOptions(r))
}

func (s *Server) clearSearch(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearSearch()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if !decode(w, r, &req) {
		return
	}

	var err error
	if req.All {
		err = s.session.ReplaceAll(req.Replacement)
	} else {
		err = s.session.Replace(req.Ranges, req.Replacement)
	}
	if err != nil {
		var rangeErr *search.InvalidRangeError
		if errors.As(err, &rangeErr) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	path, err := s.session.CreateDocument(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func (s *Server) insertUDF(w http.ResponseWriter, r *http.Request) {
	var req udfRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.session.InsertUDF(req.Script); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) getKeymap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Keymap().Bindings())
}

// pressKey dispatches a key identifier through the session keymap.
func (s *Server) pressKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.session.Keymap().Dispatch(req.Key) {
		writeError(w, http.StatusNotFound, &unboundKeyError{key: req.Key})
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.state.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

type unboundKeyError struct {
	key string
}

func (e *unboundKeyError) Error() string {
	return "no action bound to key " + e.key
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
