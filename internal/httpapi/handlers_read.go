package httpapi

import (
	"net/http"
	"strconv"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/readpipe"
)

// handleReadBytes implements read_bytes: binary-format-only, bounded
// single read with a lazily-opened, never-closed descriptor.
func (s *Server) handleReadBytes(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	slot := s.Store.Lookup(id)
	if slot == nil {
		writeError(w, apierr.New(http.StatusNotFound, "session not found"))
		return
	}

	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	data, err := readpipe.ReadBytes(r.Context(), s.Store, slot, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOctetStream(w, data)
}

// handleReadLines implements read_lines: text-format-only, exactly-n-lines
// reads with EOF detection.
func (s *Server) handleReadLines(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	slot := s.Store.Lookup(id)
	if slot == nil {
		writeError(w, apierr.New(http.StatusNotFound, "session not found"))
		return
	}

	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	data, err := readpipe.ReadLines(r.Context(), s.Store, slot, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeText(w, string(data))
}
