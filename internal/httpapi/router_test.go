package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/session"
)

type noopDialer struct{}

func (noopDialer) Dial(ctx context.Context, host string, port int, user, password string) (arraydb.Conn, error) {
	return nil, errors.New("dial not expected in this test")
}

type fakeConn struct{}

func (fakeConn) Prepare(ctx context.Context, query string) (arraydb.Prepared, arraydb.QueryID, error) {
	return query, arraydb.QueryID{}, nil
}
func (fakeConn) Execute(ctx context.Context, query string, prepared arraydb.Prepared) error {
	return nil
}
func (fakeConn) Complete(ctx context.Context, qid arraydb.QueryID) error { return nil }
func (fakeConn) Cancel(ctx context.Context, target string) error        { return nil }
func (fakeConn) Disconnect(ctx context.Context) error                   { return nil }

type fakeOKDialer struct{}

func (fakeOKDialer) Dial(ctx context.Context, host string, port int, user, password string) (arraydb.Conn, error) {
	return fakeConn{}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := session.NewStore(4, noopDialer{}, t.TempDir(), 60*time.Second, 0, false)
	require.NoError(t, err)
	return NewServer(store, "", 0, t.TempDir(), nil, nil, nil)
}

func TestStaticFilesSetsCommonHeaders(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.DocRoot, "index.html"), []byte("hi"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
	rec := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "hi", rec.Body.String())
}

func TestStaticFilesForbidsHtpasswd(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.DocRoot, ".htpasswd"), []byte("secret"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/.htpasswd", nil)
	rec := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestStaticFilesForbidsNestedHtpasswd(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sub/dir/.htpasswd", nil)
	rec := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterDispatchesVersion(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Version, rec.Body.String())
}

func TestRouterDispatchesNewSessionAndReleaseSession(t *testing.T) {
	s := newTestServer(t)
	s.Store.Dialer = fakeOKDialer{}

	req := httptest.NewRequest(http.MethodGet, "/new_session", nil)
	rec := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Body.String()
	require.NotEmpty(t, id)

	req2 := httptest.NewRequest(http.MethodGet, "/release_session?id="+id, nil)
	rec2 := httptest.NewRecorder()
	s.NewRouter().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestListenerServeAndShutdown(t *testing.T) {
	s := newTestServer(t)
	l, err := s.NewListener("127.0.0.1:0", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Serve() }()

	require.NoError(t, l.Shutdown(context.Background()))
	require.ErrorIs(t, <-done, http.ErrServerClosed)
}
