// Package session implements the fixed-size session pool: allocation,
// lookup by opaque id, lazy timeout-based reclamation, and the per-slot /
// global locking discipline the rest of the gateway builds on.
package session

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paradigm4/arrayshim/internal/arraydb"
)

// State is a slot's membership state.
type State int

const (
	// Available slots own no open files, no backend connections, and no
	// query id.
	Available State = iota
	// Unavailable slots are owned by exactly one HTTP-visible session.
	Unavailable
)

// SaveMode records the output format of the most recent execute that
// specified a save target. It is sticky: an execute that omits save never
// clears it, so a prior result stays readable.
type SaveMode int

const (
	SaveNone SaveMode = iota
	SaveBinary
	SaveText
)

// unallocatedID is the id string carried by Available slots.
const unallocatedID = "NA"

// Slot is one entry in the fixed-size session pool. All mutation of a
// slot's fields outside of allocation must hold the slot lock.
type Slot struct {
	mu sync.Mutex

	index int

	state State
	id    string

	// qidCoordinator/qidQuery hold the current query id outside the main
	// slot lock. Cancel reads them without acquiring that lock at all, so
	// a cancel in flight is never blocked behind a long execute holding
	// the lock on the same slot.
	qidCoordinator atomic.Uint64
	qidQuery       atomic.Uint64

	// Backend[0] carries prepare/execute/complete; Backend[1] is reserved
	// for cancel so it can proceed while Backend[0] is blocked in execute.
	// Backend is only ever written while the main slot lock is held
	// (allocation and cleanup); cancel's unlocked read of Backend[1] is
	// safe in practice because a session is never released out from under
	// a caller that is itself mid-cancel against it.
	Backend [2]arraydb.Conn

	InputPath  string
	OutputPath string
	PipePath   string

	// OutFile is the lazily-opened handle used by the read pipeline. It is
	// nil until the first read after a save and is never closed between
	// reads of the same session.
	OutFile *os.File
	// OutPos tracks the next byte offset read_bytes will read from,
	// since OutFile is opened non-blocking and shared across calls.
	OutPos int64

	// LineReader is read_lines' buffered view of OutFile, created the
	// first time a session is read line-wise and reused across calls so
	// the next call resumes where the last one stopped.
	LineReader *bufio.Reader

	SaveMode SaveMode

	// Stream and Compression are reserved fields; nothing currently drives
	// them true. See internal/query for where they would be consulted if
	// streaming save output were ever implemented.
	Stream      bool
	Compression int

	LastTouched time.Time
}

// Index returns the slot's position in the pool.
func (s *Slot) Index() int { return s.index }

// ID returns the slot's current session id, or "NA" if Available.
func (s *Slot) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Lock acquires the slot's lock. Callers that already hold it must not
// call Lock again: Go mutexes are not reentrant, and the gateway is
// structured so no call path needs them to be (see store.go).
func (s *Slot) Lock() { s.mu.Lock() }

// Unlock releases the slot's lock.
func (s *Slot) Unlock() { s.mu.Unlock() }

// TouchBusy bumps last_touched a week into the future, the mechanism that
// keeps a slot doing real work safe from the reaper regardless of how long
// the operation takes. Callers must hold the slot lock.
func (s *Slot) TouchBusy() {
	s.LastTouched = time.Now().Add(7 * 24 * time.Hour)
}

// TouchDone marks the slot as idle as of now, making it eligible for
// reaping again once TIMEOUT elapses. Callers must hold the slot lock.
func (s *Slot) TouchDone() {
	s.LastTouched = time.Now()
}

// QID returns the slot's current query id. Safe to call without holding
// the slot lock; see the Backend/qid field comments above.
func (s *Slot) QID() arraydb.QueryID {
	return arraydb.QueryID{
		Coordinator: s.qidCoordinator.Load(),
		Query:       s.qidQuery.Load(),
	}
}

// SetQID records qid so a concurrent cancel on Backend[1] can target it
// without waiting on the main slot lock.
func (s *Slot) SetQID(qid arraydb.QueryID) {
	s.qidCoordinator.Store(qid.Coordinator)
	s.qidQuery.Store(qid.Query)
}

// SetSaveModeLocked sets the sticky save mode. It never downgrades to
// SaveNone; callers only ever pass SaveBinary or SaveText. Callers must
// hold the slot lock.
func (s *Slot) SetSaveModeLocked(m SaveMode) { s.SaveMode = m }
