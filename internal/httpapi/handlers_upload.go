package httpapi

import (
	"io"
	"net/http"
	"os"

	"github.com/paradigm4/arrayshim/internal/apierr"
)

// handleUpload streams the request body into the session's input file.
// last_touched is pinned a week into the future for the duration of the
// copy so the reaper cannot harvest a session mid-upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	slot := s.Store.Lookup(id)
	if slot == nil {
		writeError(w, apierr.New(http.StatusNotFound, "session not found"))
		return
	}

	slot.Lock()
	slot.TouchBusy()
	path := slot.InputPath
	slot.Unlock()

	n, err := copyRequestBody(path, r.Body)

	slot.Lock()
	slot.TouchDone()
	slot.Unlock()

	if err != nil {
		writeError(w, apierr.Wrap(http.StatusInternalServerError, "upload failed", err))
		return
	}
	if n < 1 {
		writeError(w, apierr.New(http.StatusBadRequest, "empty file"))
		return
	}

	writeText(w, path)
}

func copyRequestBody(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, body)
}
