// Package readpipe implements the two read-side endpoints layered on top of
// a session's output buffer: read_bytes (binary, fixed-size chunks) and
// read_lines (text, line-oriented). Both lazily open the buffer in
// non-blocking mode, poll for readability in 250ms ticks, and never close
// the descriptor between calls so repeat calls advance the offset.
package readpipe

import (
	"context"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/session"
)

// maxReturnBytes bounds a single read_bytes response so one call can
// never allocate unbounded memory regardless of what the client asks for.
const maxReturnBytes = 64 * 1024 * 1024

// pollInterval is how often read_bytes/read_lines reattempt poll while
// waiting for the pipe or buffer file to become readable.
const pollInterval = 250 * time.Millisecond

// ReadBytes implements read_bytes: requires SaveBinary, else 416. n<1 sends
// the whole output file. Otherwise it opens the buffer lazily, clamps n to
// the file's size and to maxReturnBytes, polls until readable, and performs
// one read. A short read is returned as-is; read==0 is EOF and reports 416.
// store is used to invalidate the session on any 500 along the way, mirroring
// cleanup_session's behavior on a buffer I/O failure.
func ReadBytes(ctx context.Context, store *session.Store, slot *session.Slot, n int) ([]byte, error) {
	slot.Lock()
	defer slot.Unlock()

	if slot.SaveMode == session.SaveNone {
		return nil, apierr.New(http.StatusGone, "Output not saved")
	}
	if slot.SaveMode != session.SaveBinary {
		return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "Output not saved in binary format")
	}

	path := slot.OutputPath
	if slot.Stream {
		path = slot.PipePath
	}

	if n < 1 {
		data, err := os.ReadFile(path)
		if err != nil {
			store.InvalidateLocked(ctx, slot)
			return nil, apierr.Wrap(http.StatusInternalServerError, "failed to open output buffer", err)
		}
		return data, nil
	}

	if err := ensureOpenLocked(store, ctx, slot, path); err != nil {
		return nil, err
	}

	if n > maxReturnBytes {
		n = maxReturnBytes
	}
	fi, err := slot.OutFile.Stat()
	if err != nil {
		store.InvalidateLocked(ctx, slot)
		return nil, apierr.Wrap(http.StatusInternalServerError, "failed to stat output buffer", err)
	}
	if size := fi.Size(); int64(n) > size {
		n = int(size)
	}

	if err := pollReadable(ctx, slot.OutFile); err != nil {
		store.InvalidateLocked(ctx, slot)
		return nil, apierr.Wrap(http.StatusInternalServerError, "failed to poll output buffer", err)
	}

	buf := make([]byte, n)
	read, err := slot.OutFile.Read(buf)
	if err != nil && read == 0 {
		return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "EOF - range out of bounds")
	}
	if read < 1 {
		return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "EOF - range out of bounds")
	}

	slot.OutPos += int64(read)
	slot.TouchDone()
	return buf[:read], nil
}

// ensureOpenLocked lazily opens a session's output buffer for reading, in
// non-blocking mode, and leaves the handle on the slot for reuse by every
// subsequent read call on this session. Callers must hold the slot lock. A
// failure to open the buffer invalidates the session, since there is no way
// to satisfy this or any later read call on it.
func ensureOpenLocked(store *session.Store, ctx context.Context, slot *session.Slot, path string) error {
	if slot.OutFile != nil {
		return nil
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		store.InvalidateLocked(ctx, slot)
		return apierr.Wrap(http.StatusInternalServerError, "failed to open output buffer", err)
	}
	slot.OutFile = os.NewFile(uintptr(fd), path)
	return nil
}

// pollReadable waits for fd to become readable in 250ms ticks. A poll
// error aborts the wait rather than retrying forever.
func pollReadable(ctx context.Context, f *os.File) error {
	fd := int(f.Fd())
	for {
		n, err := unix.Poll([]unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}, int(pollInterval.Milliseconds()))
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
