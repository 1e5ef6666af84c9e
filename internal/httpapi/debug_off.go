//go:build !arrayshim_debug

package httpapi

import "net/http"

const debugEnabled = false

// handleDebug is a no-op stub; debugEnabled is false in this build so
// router.go never registers it, but the method must still exist to compile.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {}
