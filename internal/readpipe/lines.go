package readpipe

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"os"

	"github.com/paradigm4/arrayshim/internal/apierr"
	"github.com/paradigm4/arrayshim/internal/session"
)

// maxLineVarLen is a nominal per-line length, used only to derive how many
// lines the total response cap allows; a single line read is not bounded
// by it.
const maxLineVarLen = 4096

// ReadLines implements read_lines: requires SaveText, else 416. n<1, or a
// streaming session, sends the whole output file regardless of n. Otherwise
// it opens the buffer lazily (non-blocking) and wraps it with a buffered
// line reader reused across calls, reads up to n lines or stops at EOF, and
// reports 416 if nothing was read at all. store is used to invalidate the
// session on any 500 along the way, mirroring cleanup_session's behavior on
// a buffer I/O failure.
func ReadLines(ctx context.Context, store *session.Store, slot *session.Slot, n int) ([]byte, error) {
	slot.Lock()
	defer slot.Unlock()

	if slot.SaveMode == session.SaveNone {
		return nil, apierr.New(http.StatusGone, "Output not saved")
	}
	if slot.SaveMode != session.SaveText {
		return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "Output not saved in text format")
	}

	if n < 1 || slot.Stream {
		data, err := os.ReadFile(slot.OutputPath)
		if err != nil {
			store.InvalidateLocked(ctx, slot)
			return nil, apierr.Wrap(http.StatusInternalServerError, "failed to open output buffer", err)
		}
		return data, nil
	}

	path := slot.OutputPath
	if err := ensureOpenLocked(store, ctx, slot, path); err != nil {
		return nil, err
	}
	if slot.LineReader == nil {
		slot.LineReader = bufio.NewReader(slot.OutFile)
	}

	if n*maxLineVarLen > maxReturnBytes {
		n = maxReturnBytes / maxLineVarLen
	}

	var out bytes.Buffer
	for i := 0; i < n; i++ {
		if err := pollReadable(ctx, slot.OutFile); err != nil {
			store.InvalidateLocked(ctx, slot)
			return nil, apierr.Wrap(http.StatusInternalServerError, "failed to poll output buffer", err)
		}

		line, err := slot.LineReader.ReadString('\n')
		out.WriteString(line)
		if err != nil {
			if err == io.EOF {
				break
			}
			if out.Len() == 0 {
				return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "EOF - range out of bounds")
			}
			break
		}
	}

	if out.Len() == 0 {
		return nil, apierr.New(http.StatusRequestedRangeNotSatisfiable, "EOF - range out of bounds")
	}

	slot.TouchDone()
	return out.Bytes(), nil
}
