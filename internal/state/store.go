package state

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of the relay.
type Snapshot struct {
	Target              string
	HasTarget           bool
	Active              bool
	SessionID           string
	ConnectedAt         time.Time
	SessionsStarted     int
	LinesRelayed        int64
	BytesRelayed        int64
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // failed capture starts since the last success
}

// Waiting reports whether a target is known but not currently relaying.
func (s Snapshot) Waiting() bool {
	return s.HasTarget && !s.Active
}

// StateName is a short label for the session state.
func (s Snapshot) StateName() string {
	if s.Active {
		return "active"
	}
	return "idle"
}

// Store coordinates concurrent access to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot

	lines atomic.Int64
	bytes atomic.Int64
}

// SetTarget records the fixed target identifier.
func (s *Store) SetTarget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Target = id
	s.snapshot.HasTarget = true
	s.snapshot.LastUpdated = time.Now()
}

// SessionStarted marks the relay active.
func (s *Store) SessionStarted(sessionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Active = true
	s.snapshot.SessionID = sessionID
	s.snapshot.ConnectedAt = at
	s.snapshot.SessionsStarted++
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	s.snapshot.LastUpdated = time.Now()
}

// SessionEnded marks the relay idle. A non-nil err is kept for display.
func (s *Store) SessionEnded(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Active = false
	s.snapshot.SessionID = ""
	s.snapshot.ConnectedAt = time.Time{}
	if err != nil {
		s.snapshot.LastError = err
	}
	s.snapshot.LastUpdated = time.Now()
}

// StartFailed records a capture start failure. The previous session data
// is kept.
func (s *Store) StartFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastError = err
	s.snapshot.ConsecutiveFailures++
	s.snapshot.LastUpdated = time.Now()
}

// CountLine adds one relayed line of n bytes. It does not take the lock.
func (s *Store) CountLine(n int) {
	s.lines.Add(1)
	s.bytes.Add(int64(n))
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.LinesRelayed = s.lines.Load()
	snap.BytesRelayed = s.bytes.Load()
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
