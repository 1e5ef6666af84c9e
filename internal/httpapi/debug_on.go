//go:build arrayshim_debug

package httpapi

import (
	"fmt"
	"net/http"
	"runtime"
)

const debugEnabled = true

// handleDebug exposes pool occupancy and runtime stats. Only compiled in
// with the arrayshim_debug build tag, never in a production build.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	body := fmt.Sprintf(
		"sessions_active=%d\nsessions_max=%d\ngoroutines=%d\n",
		s.Store.Active(), s.Store.Len(), runtime.NumGoroutine(),
	)
	writeText(w, body)
}
