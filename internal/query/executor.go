// Package query implements the query executor: save-wrapping, optional
// prefix statements, prepare/execute/complete against the backend, error
// classification, and cancel.
package query

import (
	"context"
	"fmt"
	"net/http"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/session"
)

// Params are the parameters /execute_query acts on. User and Password are
// not part of it: they only apply at /new_session.
type Params struct {
	Query   string
	Save    string
	Release bool
	Prefix  string
}

// Result is what a successful execute reports back to the HTTP layer.
type Result struct {
	QueryID arraydb.QueryID
}

// Execute implements the execute_query algorithm in full: session
// resolution, save rewriting, prefix statements, prepare/execute/complete,
// error classification, and optional release. The slot lock is held for
// the operation's entire duration, deliberately serializing all other
// operations against this session.
func Execute(ctx context.Context, store *session.Store, id string, p Params) (Result, error) {
	slot := store.Lookup(id)
	if slot == nil {
		return Result{}, apierr.New(http.StatusNotFound, "unknown session")
	}

	slot.Lock()
	defer slot.Unlock()

	target := slot.OutputPath
	if slot.Stream {
		target = slot.PipePath
	}

	queryText := p.Query
	if p.Save != "" {
		rewritten, binary := rewriteQuery(p.Query, p.Save, target, store.SaveInstanceID, store.UseAIO)
		queryText = rewritten
		if binary {
			slot.SetSaveModeLocked(session.SaveBinary)
		} else {
			slot.SetSaveModeLocked(session.SaveText)
		}
	}

	if p.Prefix != "" {
		for _, stmt := range splitPrefix(p.Prefix) {
			if err := runStatement(ctx, store, slot, stmt); err != nil {
				return Result{}, err
			}
		}
	}

	slot.TouchBusy()
	defer slot.TouchDone()

	prepared, qid, err := slot.Backend[0].Prepare(ctx, queryText)
	if err != nil {
		return Result{}, classifyAndInvalidate(ctx, store, slot, err)
	}
	slot.SetQID(qid)

	if err := slot.Backend[0].Execute(ctx, queryText, prepared); err != nil {
		return Result{}, classifyAndInvalidate(ctx, store, slot, err)
	}

	if err := slot.Backend[0].Complete(ctx, qid); err != nil {
		return Result{}, classifyAndInvalidate(ctx, store, slot, err)
	}

	if p.Release {
		store.InvalidateLocked(ctx, slot)
	}

	return Result{QueryID: qid}, nil
}

// runStatement executes one prefix fragment on Backend[0] and classifies
// any failure exactly like the main query: a connection error invalidates
// the session.
func runStatement(ctx context.Context, store *session.Store, slot *session.Slot, stmt string) error {
	prepared, qid, err := slot.Backend[0].Prepare(ctx, stmt)
	if err != nil {
		return classifyAndInvalidate(ctx, store, slot, err)
	}
	slot.SetQID(qid)

	if err := slot.Backend[0].Execute(ctx, stmt, prepared); err != nil {
		return classifyAndInvalidate(ctx, store, slot, err)
	}

	if err := slot.Backend[0].Complete(ctx, qid); err != nil {
		return classifyAndInvalidate(ctx, store, slot, err)
	}

	return nil
}

// classifyAndInvalidate maps a raw backend error to its HTTP status. A
// connection-class error (502) invalidates the session per the error
// handling contract; any other backend error (406) preserves it.
func classifyAndInvalidate(ctx context.Context, store *session.Store, slot *session.Slot, err error) error {
	if arraydb.IsConnectionError(err) {
		se := apierr.Wrap(http.StatusBadGateway, "backend connection failed", err)
		store.InvalidateLocked(ctx, slot)
		return se
	}
	return apierr.Wrap(http.StatusNotAcceptable, "query failed", err)
}

// Cancel composes cancel('<coord>.<query>') and runs it on Backend[1],
// which is reserved exactly so this can proceed while Backend[0] is
// blocked inside Execute. It does not release the session.
func Cancel(ctx context.Context, store *session.Store, id string) error {
	slot := store.Lookup(id)
	if slot == nil {
		return apierr.New(http.StatusNotFound, "unknown session")
	}

	// Deliberately does not take the slot lock: cancel must be able to run
	// while an Execute on this same slot is blocked inside Backend[0], so
	// it reads the query id and the reserved second backend handle without
	// serializing behind whatever Execute is doing.
	qid := slot.QID()
	backend1 := slot.Backend[1]

	if qid.IsZero() {
		return apierr.New(http.StatusConflict, "no active query")
	}

	target := fmt.Sprintf("cancel('%s')", qid.String())
	if err := backend1.Cancel(ctx, target); err != nil {
		return apierr.Wrap(http.StatusBadGateway, "cancel failed", err)
	}
	return nil
}
