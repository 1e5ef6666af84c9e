package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/query"
)

// handleExecuteQuery runs execute_query per its full algorithm: save
// rewriting, optional prefix statements, prepare/execute/complete, and
// optional release.
func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	queryText := q.Get("query")
	if id == "" || queryText == "" {
		writeError(w, apierr.New(http.StatusBadRequest, "missing required argument"))
		return
	}

	params := query.Params{
		Query:   queryText,
		Save:    q.Get("save"),
		Prefix:  q.Get("prefix"),
		Release: parseBoolLikeInt(q.Get("release")),
	}

	result, err := query.Execute(r.Context(), s.Store, id, params)
	if err != nil {
		s.recordQueryResult(err)
		writeError(w, err)
		return
	}

	s.recordQueryResult(nil)
	writeText(w, fmt.Sprintf("%d", result.QueryID.Query))
}

// handleCancel runs cancel on the session's reserved second backend handle.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, apierr.New(http.StatusBadRequest, "missing required argument"))
		return
	}

	if err := query.Cancel(r.Context(), s.Store, id); err != nil {
		writeError(w, err)
		return
	}

	s.recordCancel()
	writeText(w, "")
}

// parseBoolLikeInt treats release as an integer truthiness flag: an
// absent, empty, or non-positive value is false.
func parseBoolLikeInt(s string) bool {
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n > 0
}
