// Package arraydb defines the narrow contract the gateway uses to talk to
// the array database's native client library, plus a reference
// implementation of a framed TCP protocol satisfying that contract.
package arraydb

import (
	"context"
	"fmt"
)

// QueryID identifies a query in flight on the backend. A zero QueryID
// (Query == 0) means "no current query".
type QueryID struct {
	Coordinator uint64
	Query       uint64
}

// IsZero reports whether q represents "no current query".
func (q QueryID) IsZero() bool {
	return q.Query == 0
}

// String renders the id the way cancel() statements expect: "coord.query".
func (q QueryID) String() string {
	return fmt.Sprintf("%d.%d", q.Coordinator, q.Query)
}

// Prepared is an opaque handle returned by Prepare and consumed by Execute.
type Prepared interface{}

// Conn is one connection to the backend. The gateway holds two per session:
// index 0 carries prepare/execute/complete, index 1 is reserved for cancel.
//
// All methods are synchronous and block the calling goroutine; callers are
// expected to run them from a regular net/http handler goroutine.
type Conn interface {
	// Prepare compiles query text and returns a Prepared handle together
	// with the query id the backend has already assigned it. The backend
	// allocates the id at prepare time, before execution starts, so
	// callers can record it for a concurrent Cancel before calling
	// Execute.
	Prepare(ctx context.Context, query string) (Prepared, QueryID, error)
	// Execute runs a prepared statement to completion.
	Execute(ctx context.Context, query string, prepared Prepared) error
	// Complete finalizes a query, releasing backend-side resources for it.
	Complete(ctx context.Context, qid QueryID) error
	// Cancel aborts a running query given its "coord.query" identifier.
	// Cancel is expected to be issued on a different Conn than the one
	// running the query it targets.
	Cancel(ctx context.Context, target string) error
	// Disconnect closes the connection. Safe to call more than once.
	Disconnect(ctx context.Context) error
}

// Dialer opens new backend connections.
type Dialer interface {
	// Dial opens one connection to the backend, authenticating with user
	// and password. An AuthError indicates the backend rejected the
	// credentials (maps to HTTP 401); any other error is a connect
	// failure (maps to HTTP 502).
	Dial(ctx context.Context, host string, port int, user, password string) (Conn, error)
}

// AuthError wraps a backend authentication rejection so callers can
// distinguish it from a transport-level connect failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }
