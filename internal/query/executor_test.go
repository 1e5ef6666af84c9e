package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/session"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var se *apierr.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, status, se.Status)
}

// fakeConn is a controllable backend connection for exercising the
// executor without a real backend. Execute optionally blocks on a channel
// so tests can exercise cancel-while-executing (P7).
type fakeConn struct {
	mu sync.Mutex

	nextQID    uint64
	prepareErr error
	executeErr error

	// blockExecute, if non-nil, causes Execute to wait on it before
	// returning, letting a test run Cancel concurrently.
	blockExecute chan struct{}
	cancelCalled chan string
}

func newFakeConn() *fakeConn {
	return &fakeConn{nextQID: 1}
}

func (f *fakeConn) Prepare(ctx context.Context, query string) (arraydb.Prepared, arraydb.QueryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareErr != nil {
		return nil, arraydb.QueryID{}, f.prepareErr
	}
	qid := arraydb.QueryID{Coordinator: 1, Query: f.nextQID}
	f.nextQID++
	return query, qid, nil
}

func (f *fakeConn) Execute(ctx context.Context, query string, prepared arraydb.Prepared) error {
	if f.blockExecute != nil {
		<-f.blockExecute
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executeErr
}

func (f *fakeConn) Complete(ctx context.Context, qid arraydb.QueryID) error { return nil }

func (f *fakeConn) Cancel(ctx context.Context, target string) error {
	if f.cancelCalled != nil {
		f.cancelCalled <- target
	}
	if f.blockExecute != nil {
		close(f.blockExecute)
	}
	return nil
}

func (f *fakeConn) Disconnect(ctx context.Context) error { return nil }

type fakeDialer struct {
	backend0, backend1 *fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, host string, port int, user, password string) (arraydb.Conn, error) {
	if d.backend0 == nil {
		d.backend0 = newFakeConn()
		return d.backend0, nil
	}
	if d.backend1 == nil {
		d.backend1 = newFakeConn()
		return d.backend1, nil
	}
	return newFakeConn(), nil
}

func newTestSession(t *testing.T) (*session.Store, *session.Slot, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	store, err := session.NewStore(4, dialer, t.TempDir(), 60*time.Second, 0, false)
	require.NoError(t, err)
	slot, err := store.Allocate(context.Background(), "host", 1, "u", "p")
	require.NoError(t, err)
	// Allocate dials both handles concurrently, so dial order says nothing
	// about which handle is which; take them from the slot itself.
	dialer.backend0 = slot.Backend[0].(*fakeConn)
	dialer.backend1 = slot.Backend[1].(*fakeConn)
	return store, slot, dialer
}

func TestRewriteQueryTextFormat(t *testing.T) {
	q, binary := rewriteQuery("list()", "csv", "/tmp/out", 0, false)
	require.False(t, binary)
	require.Equal(t, "save(list(),'/tmp/out',0,'csv')", q)
}

func TestRewriteQueryBinaryTypeList(t *testing.T) {
	q, binary := rewriteQuery("list()", "(int64,string)", "/tmp/out", 0, false)
	require.True(t, binary)
	require.Equal(t, "save(list(),'/tmp/out',0,'(int64,string)')", q)
}

func TestRewriteQueryUsesAioSaveWhenEnabled(t *testing.T) {
	q, binary := rewriteQuery("list()", "arrow", "/tmp/out", 3, true)
	require.True(t, binary)
	require.Equal(t, "aio_save(list(),'path=/tmp/out','instance=3','format=arrow')", q)
}

func TestRewriteQueryDoesNotUseAioSaveForPlainText(t *testing.T) {
	q, binary := rewriteQuery("list()", "csv", "/tmp/out", 3, true)
	require.False(t, binary)
	require.Equal(t, "save(list(),'/tmp/out',3,'csv')", q)
}

func TestSplitPrefixLiteralSemicolons(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitPrefix("a;b;c"))
	require.Equal(t, []string{"a", "b"}, splitPrefix(";a;;b;"))
	require.Nil(t, splitPrefix(""))
	require.Nil(t, splitPrefix(";;;"))
}

// P4 (save stickiness): after an execute with save=csv, a subsequent
// execute without save still leaves the session's save mode as text.
func TestSaveModeIsSticky(t *testing.T) {
	store, slot, _ := newTestSession(t)
	ctx := context.Background()

	_, err := Execute(ctx, store, slot.ID(), Params{Query: "list()", Save: "csv"})
	require.NoError(t, err)
	require.Equal(t, session.SaveText, slot.SaveMode)

	_, err = Execute(ctx, store, slot.ID(), Params{Query: "list()"})
	require.NoError(t, err)
	require.Equal(t, session.SaveText, slot.SaveMode)
}

func TestSaveModeBinaryThenNoSaveStaysBinary(t *testing.T) {
	store, slot, _ := newTestSession(t)
	ctx := context.Background()

	_, err := Execute(ctx, store, slot.ID(), Params{Query: "list()", Save: "(int64)"})
	require.NoError(t, err)
	require.Equal(t, session.SaveBinary, slot.SaveMode)

	_, err = Execute(ctx, store, slot.ID(), Params{Query: "list()"})
	require.NoError(t, err)
	require.Equal(t, session.SaveBinary, slot.SaveMode)
}

func TestExecuteUnknownSessionIs404(t *testing.T) {
	store, _, _ := newTestSession(t)
	_, err := Execute(context.Background(), store, "does-not-exist", Params{Query: "list()"})
	requireStatus(t, err, 404)
}

func TestExecuteBackendQueryErrorIs406AndPreservesSession(t *testing.T) {
	store, slot, dialer := newTestSession(t)
	dialer.backend0.executeErr = errors.New("syntax error near 'foo'")

	_, err := Execute(context.Background(), store, slot.ID(), Params{Query: "foo"})
	requireStatus(t, err, 406)

	require.NotNil(t, store.Lookup(slot.ID()))
}

func TestExecuteConnectionErrorIs502AndInvalidatesSession(t *testing.T) {
	store, slot, dialer := newTestSession(t)
	dialer.backend0.executeErr = errors.New("SCIDB_LE_CONNECTION_ERROR: lost connection")

	id := slot.ID()
	_, err := Execute(context.Background(), store, id, Params{Query: "list()"})
	requireStatus(t, err, 502)

	require.Nil(t, store.Lookup(id))
}

// P7 (cancel independence): cancel on backend[1] completes without
// waiting for a concurrent execute on backend[0] to finish.
func TestCancelCompletesWhileExecuteIsBlocked(t *testing.T) {
	store, slot, dialer := newTestSession(t)
	// A cancel on backend[1] is what releases the execute blocked on
	// backend[0], so both fakes share one channel.
	block := make(chan struct{})
	dialer.backend0.blockExecute = block
	dialer.backend1.blockExecute = block
	dialer.backend1.cancelCalled = make(chan string, 1)
	// Read the id up front: slot.ID() takes the slot lock, which Execute
	// holds while it is blocked.
	id := slot.ID()

	done := make(chan error, 1)
	go func() {
		_, err := Execute(context.Background(), store, id, Params{Query: "list()"})
		done <- err
	}()

	// Give Execute a moment to reach the blocked backend call and record
	// its qid before we try to cancel it.
	require.Eventually(t, func() bool {
		return !slot.QID().IsZero()
	}, time.Second, time.Millisecond)

	cancelErr := Cancel(context.Background(), store, id)
	require.NoError(t, cancelErr)

	select {
	case target := <-dialer.backend1.cancelCalled:
		require.Contains(t, target, "cancel(")
	case <-time.After(time.Second):
		t.Fatal("cancel did not reach backend[1]")
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("execute never unblocked")
	}
}

func TestCancelWithNoActiveQueryIs409(t *testing.T) {
	store, slot, _ := newTestSession(t)
	err := Cancel(context.Background(), store, slot.ID())
	requireStatus(t, err, 409)
}

func TestCancelUnknownSessionIs404(t *testing.T) {
	store, _, _ := newTestSession(t)
	err := Cancel(context.Background(), store, "nope")
	requireStatus(t, err, 404)
}
