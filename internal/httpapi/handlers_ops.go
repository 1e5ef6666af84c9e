package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
)

// Version is the build version string served by /version. It is a plain
// var, not a const, so it can be overridden by a linker flag at build time.
var Version = "dev"

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeText(w, Version)
}

// handleGetLog best-effort tails the backend's log file, located via a
// process-table heuristic rather than a configured path, since the
// backend process is not one arrayshim started or manages directly.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	tailPath := filepath.Join(s.Store.TempDir, ".arrayshim.log")

	cmd := fmt.Sprintf(
		`tail -n 1555 "$(ps axu | grep -i arraydb | grep '/0/0' | head -n 1 | sed -e 's/arraydb-0-0.*//' -e 's/.* \//\//')/arraydb.log" > %q`,
		tailPath,
	)
	_ = exec.Command("sh", "-c", cmd).Run()

	data, err := os.ReadFile(tailPath)
	if err != nil {
		writeText(w, "")
		return
	}
	writeText(w, string(data))
}
