package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paradigm4/arrayshim/internal/arraydb"
	"github.com/paradigm4/arrayshim/internal/bufmgr"
)

// idCharset is the alphabet session ids are drawn from. Randomness quality
// here is not security-critical: an id is a capability only for the
// lifetime of the session and only within this process.
const idCharset = "0123456789abcdefghijklmnopqrstuvwxyz"

const idLength = 32

// ErrNoSlots is returned by Allocate when every slot is Unavailable and
// none has exceeded its timeout, i.e. the pool is genuinely full.
var ErrNoSlots = errors.New("session: no available slots")

// Store is the fixed-size pool of session slots, plus the global state
// every slot is created against (backend address, temp dir, timeout,
// save-instance id, aio policy).
type Store struct {
	// mu is the global lock: acquired only around allocation/reaping and
	// around Store.CleanupAll's bulk walk.
	mu sync.Mutex

	slots []*Slot

	Dialer  arraydb.Dialer
	TempDir string
	Timeout time.Duration

	// SaveInstanceID is the instance id save()/aio_save() calls target.
	SaveInstanceID int
	// UseAIO selects aio_save() over save() for formats aio_save supports.
	UseAIO bool
}

// NewStore creates a Store with maxSessions slots, all initially Available.
// maxSessions must be in (0, 100]; timeout is clamped to a 60-second floor
// per the external interface contract.
func NewStore(maxSessions int, dialer arraydb.Dialer, tempDir string, timeout time.Duration, saveInstanceID int, useAIO bool) (*Store, error) {
	if maxSessions <= 0 || maxSessions > 100 {
		return nil, fmt.Errorf("session: max sessions must be in (0, 100], got %d", maxSessions)
	}
	if timeout < 60*time.Second {
		timeout = 60 * time.Second
	}

	slots := make([]*Slot, maxSessions)
	for i := range slots {
		slots[i] = &Slot{index: i, state: Available, id: unallocatedID}
	}

	return &Store{
		slots:          slots,
		Dialer:         dialer,
		TempDir:        tempDir,
		Timeout:        timeout,
		SaveInstanceID: saveInstanceID,
		UseAIO:         useAIO,
	}, nil
}

// Len returns the pool's fixed capacity.
func (st *Store) Len() int { return len(st.slots) }

// Active returns the number of slots currently Unavailable, for gauges.
func (st *Store) Active() int {
	n := 0
	for _, s := range st.slots {
		s.Lock()
		if s.state == Unavailable {
			n++
		}
		s.Unlock()
	}
	return n
}

// Allocate finds an Available slot, or reaps the first Unavailable slot
// found past its timeout, creates fresh backend connections and buffers for it,
// and returns it in the Unavailable state. It returns ErrNoSlots if every
// slot is Unavailable and within its timeout window. A session actively
// doing work keeps last_touched pinned a week in the future, so it is
// never chosen here regardless of how long the scan takes.
func (st *Store) Allocate(ctx context.Context, host string, port int, user, password string) (*Slot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var target *Slot
	for _, s := range st.slots {
		s.Lock()
		if s.state == Available {
			target = s
			s.Unlock()
			break
		}
		s.Unlock()
	}

	if target == nil {
		now := time.Now()
		for _, s := range st.slots {
			s.Lock()
			if s.state == Unavailable && now.Sub(s.LastTouched) > st.Timeout {
				st.cleanupLocked(s)
				target = s
				s.Unlock()
				break
			}
			s.Unlock()
		}
	}

	if target == nil {
		return nil, ErrNoSlots
	}

	id := st.generateIDLocked()

	target.Lock()
	defer target.Unlock()

	// The two backend handles are dialed concurrently: nothing in the
	// protocol requires them to be sequential, and a slow backend doubles
	// allocate() latency for no reason if they're dialed one at a time.
	var conn0, conn1 arraydb.Conn
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := st.Dialer.Dial(gctx, host, port, user, password)
		conn0 = c
		return err
	})
	g.Go(func() error {
		c, err := st.Dialer.Dial(gctx, host, port, user, password)
		conn1 = c
		return err
	})
	if err := g.Wait(); err != nil {
		if conn0 != nil {
			_ = conn0.Disconnect(ctx)
		}
		if conn1 != nil {
			_ = conn1.Disconnect(ctx)
		}
		return nil, err
	}

	bufs, err := bufmgr.Create(st.TempDir, id)
	if err != nil {
		_ = conn0.Disconnect(ctx)
		_ = conn1.Disconnect(ctx)
		return nil, fmt.Errorf("not allocated: %w", err)
	}

	target.state = Unavailable
	target.id = id
	target.SetQID(arraydb.QueryID{})
	target.Backend[0] = conn0
	target.Backend[1] = conn1
	target.InputPath = bufs.InputPath
	target.OutputPath = bufs.OutputPath
	target.PipePath = bufs.PipePath
	target.OutFile = nil
	target.OutPos = 0
	target.LineReader = nil
	target.SaveMode = SaveNone
	target.Stream = false
	target.Compression = -1
	target.LastTouched = time.Now()

	return target, nil
}

// Lookup returns the Unavailable slot with the given id, or nil.
func (st *Store) Lookup(id string) *Slot {
	if id == "" || id == unallocatedID {
		return nil
	}
	for _, s := range st.slots {
		s.Lock()
		match := s.state == Unavailable && s.id == id
		s.Unlock()
		if match {
			return s
		}
	}
	return nil
}

// Release disconnects both backend handles and returns the slot to
// Available, unlinking its temp buffers.
func (st *Store) Release(ctx context.Context, s *Slot) {
	s.Lock()
	conn0, conn1 := s.Backend[0], s.Backend[1]
	s.Unlock()

	if conn0 != nil {
		_ = conn0.Disconnect(ctx)
	}
	if conn1 != nil {
		_ = conn1.Disconnect(ctx)
	}

	s.Lock()
	st.cleanupLocked(s)
	s.Unlock()
}

// InvalidateLocked disconnects both backend handles and cleans up s,
// returning it to Available. Callers must already hold s's lock; this is
// how execute/upload/read invalidate a session on a fatal error without
// releasing and reacquiring the lock they're already holding.
func (st *Store) InvalidateLocked(ctx context.Context, s *Slot) {
	conn0, conn1 := s.Backend[0], s.Backend[1]
	if conn0 != nil {
		_ = conn0.Disconnect(ctx)
	}
	if conn1 != nil {
		_ = conn1.Disconnect(ctx)
	}
	st.cleanupLocked(s)
}

// cleanupLocked unlinks buffers, closes any open read handle, and resets a
// slot to Available. Callers must hold s's lock. It does not touch backend
// connections: callers that want them disconnected must do so first, since
// disconnect is itself a blocking backend call that should not run with
// the slot lock held any longer than necessary.
func (st *Store) cleanupLocked(s *Slot) {
	if s.OutFile != nil {
		_ = s.OutFile.Close()
		s.OutFile = nil
	}
	s.LineReader = nil
	if s.InputPath != "" || s.OutputPath != "" || s.PipePath != "" {
		bufmgr.Cleanup(bufmgr.Buffers{
			InputPath:  s.InputPath,
			OutputPath: s.OutputPath,
			PipePath:   s.PipePath,
		})
	}

	s.state = Available
	s.id = unallocatedID
	s.SetQID(arraydb.QueryID{})
	s.Backend[0] = nil
	s.Backend[1] = nil
	s.InputPath = ""
	s.OutputPath = ""
	s.PipePath = ""
	s.OutPos = 0
	s.SaveMode = SaveNone
	s.Stream = false
	s.Compression = -1
	s.LastTouched = time.Time{}
}

// CleanupAll performs a best-effort unlink of every slot's buffers under
// the global lock, without taking any per-slot lock. It is intended to be
// called from a termination signal handler where acquiring per-slot locks
// could deadlock against a hung backend call. Correctness is not the goal;
// reducing leaked files on disk is.
func (st *Store) CleanupAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.slots {
		if s.InputPath != "" {
			_ = os.Remove(s.InputPath)
		}
		if s.OutputPath != "" {
			_ = os.Remove(s.OutputPath)
		}
		if s.PipePath != "" {
			_ = os.Remove(s.PipePath)
		}
	}
}

// generateIDLocked draws ids until it finds one not in use by any
// Unavailable slot. Callers must hold st.mu (the global lock), which
// Allocate already does for its whole critical section.
func (st *Store) generateIDLocked() string {
	for {
		id := randomID()
		collision := false
		for _, s := range st.slots {
			s.Lock()
			if s.state == Unavailable && s.id == id {
				collision = true
			}
			s.Unlock()
			if collision {
				break
			}
		}
		if !collision {
			return id
		}
	}
}

func randomID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idCharset[rand.IntN(len(idCharset))]
	}
	return string(b)
}
