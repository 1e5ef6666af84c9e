// Package httpapi wires the session store, query executor, and read
// pipeline to the fixed HTTP URI table: new_session, release_session,
// execute_query, cancel, upload, read_bytes, read_lines, version, get_log,
// and a debug-build endpoint, plus a static-file fallback that refuses any
// path touching .htpasswd.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/paradigm4/arrayshim/internal/apierr"
)

// commonHeaders sets the headers every response carries per the external
// interface contract, regardless of outcome.
func commonHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
}

// writeError translates err into its HTTP status and a short plain-text
// body. A *apierr.StatusError carries its own status; anything else is a
// 500 with a generic reason so internal detail never leaks to the client.
func writeError(w http.ResponseWriter, err error) {
	commonHeaders(w)
	w.Header().Set("Content-Type", "text/plain")

	var se *apierr.StatusError
	if errors.As(err, &se) {
		w.WriteHeader(se.Status)
		_, _ = w.Write([]byte(se.Error()))
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("internal error"))
}

// writeText writes a 200 text/plain response.
func writeText(w http.ResponseWriter, body string) {
	commonHeaders(w)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// writeOctetStream writes a 200 application/octet-stream response, used
// only by read_bytes.
func writeOctetStream(w http.ResponseWriter, body []byte) {
	commonHeaders(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
