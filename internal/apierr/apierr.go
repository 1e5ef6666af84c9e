// Package apierr defines the small status-carrying error type shared by
// internal/query, internal/readpipe, and internal/httpapi, so a failure
// deep in the query pipeline can carry its HTTP status all the way out to
// the response writer without httpapi needing to re-derive it.
package apierr

import "fmt"

// StatusError is an error with a fixed HTTP status and a short
// human-readable reason. Detail, when non-empty, is the wrapped error's
// text (the literal backend error text for 406/502); Error() appends it to
// Reason, so it reaches the response body for any status built with Wrap.
type StatusError struct {
	Status  int
	Reason  string
	Detail  string
	wrapped error
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return e.Reason
}

func (e *StatusError) Unwrap() error { return e.wrapped }

// New builds a StatusError with no wrapped backend detail.
func New(status int, reason string) *StatusError {
	return &StatusError{Status: status, Reason: reason}
}

// Wrap builds a StatusError carrying the literal backend error text.
func Wrap(status int, reason string, detail error) *StatusError {
	se := &StatusError{Status: status, Reason: reason, wrapped: detail}
	if detail != nil {
		se.Detail = detail.Error()
	}
	return se
}
