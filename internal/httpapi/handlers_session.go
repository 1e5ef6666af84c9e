package httpapi

import (
	"errors"
	"net/http"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/session"
)

// handleNewSession allocates a slot and dials two backend connections,
// using the user/password query parameters when present.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = s.DefaultUser
	}
	password := r.URL.Query().Get("password")
	if password == "" {
		password = s.DefaultPassword
	}

	slot, err := s.Store.Allocate(r.Context(), s.BackendHost, s.BackendPort, user, password)
	if err != nil {
		s.recordSessionResult(false)
		writeError(w, classifyAllocateError(err))
		return
	}

	s.recordSessionResult(true)
	writeText(w, slot.ID())
}

func classifyAllocateError(err error) error {
	if errors.Is(err, session.ErrNoSlots) {
		return apierr.New(http.StatusServiceUnavailable, "out of resources")
	}
	var authErr *arraydb.AuthError
	if errors.As(err, &authErr) {
		return apierr.New(http.StatusUnauthorized, "SciDB authentication failed")
	}
	return apierr.Wrap(http.StatusBadGateway, "SciDB connection failed", err)
}

// handleReleaseSession disconnects a session's backend handles and returns
// its slot to the pool.
func (s *Server) handleReleaseSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	slot := s.Store.Lookup(id)
	if slot == nil {
		writeError(w, apierr.New(http.StatusNotFound, "session not found"))
		return
	}
	s.Store.Release(r.Context(), slot)
	writeText(w, "")
}
