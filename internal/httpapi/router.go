package httpapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter builds the fixed URI table and wraps everything else in a
// static file server rooted at s.DocRoot, refusing any request that
// touches a .htpasswd file regardless of where in the tree it lives.
func (s *Server) NewRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/new_session", s.handleNewSession).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/release_session", s.handleReleaseSession).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/execute_query", s.handleExecuteQuery).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost, http.MethodPut)
	r.HandleFunc("/read_bytes", s.handleReadBytes).Methods(http.MethodGet)
	r.HandleFunc("/read_lines", s.handleReadLines).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/get_log", s.handleGetLog).Methods(http.MethodGet)

	if debugEnabled {
		r.HandleFunc("/debug", s.handleDebug).Methods(http.MethodGet)
	}

	fileServer := http.FileServer(http.Dir(s.DocRoot))
	r.PathPrefix("/").Handler(s.staticFiles(fileServer))

	return r
}

// staticFiles sets the response headers every endpoint carries, then
// refuses any request whose path touches a .htpasswd file before it ever
// reaches the static file handler.
func (s *Server) staticFiles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commonHeaders(w)
		if strings.Contains(r.URL.Path, ".htpasswd") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Listener pairs a net/http.Server with its listener so a caller opening
// several (cmd/arrayshim's startListeners) can shut down every listener it
// already opened if a later one fails to bind.
type Listener struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
	tlsConfig  *tls.Config
}

// NewListener binds addr and wraps it with the server's router, ready for
// Serve. If tlsConfig is non-nil, Serve terminates TLS on this
// listener using it; otherwise the listener serves plaintext.
func (s *Server) NewListener(addr string, tlsConfig *tls.Config) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: failed to listen on %s: %w", addr, err)
	}
	return &Listener{
		httpServer: &http.Server{Handler: s.NewRouter()},
		listener:   ln,
		addr:       addr,
		tlsConfig:  tlsConfig,
	}, nil
}

// Serve blocks serving connections on the listener until it is closed by
// Shutdown, returning http.ErrServerClosed in the ordinary shutdown case.
// When the listener was built with a non-nil tlsConfig, connections are
// served over TLS.
func (l *Listener) Serve() error {
	if l.tlsConfig != nil {
		l.httpServer.TLSConfig = l.tlsConfig
		return l.httpServer.ServeTLS(l.listener, "", "")
	}
	return l.httpServer.Serve(l.listener)
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.httpServer.Shutdown(ctx)
}

// Addr returns the address this listener was bound to.
func (l *Listener) Addr() string { return l.addr }

// ShutdownTimeout is the default grace period main.go gives in-flight
// requests before forcing listener shutdown.
const ShutdownTimeout = 10 * time.Second
