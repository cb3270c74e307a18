package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/revieqt/taralets-server/internal/metrics"
	"github.com/revieqt/taralets-server/internal/tracker"
)

var (
	// ErrNotFound is returned for session IDs the store does not know about,
	// including sessions already removed by the cleanup routine.
	ErrNotFound = errors.New("session not found")

	// ErrStopped is returned when a fix is pushed into a session that has
	// already been stopped.
	ErrStopped = errors.New("session is stopped")
)

// Session is one live tracking session: a tracker fed by client-pushed fixes
// through its pushProvider.
type Session struct {
	ID        string
	CreatedAt time.Time

	Tracker  *tracker.Tracker
	provider *pushProvider

	mu        sync.Mutex
	lastFixAt time.Time
}

// LastActivity returns the time of the most recent pushed fix, or the
// creation time when no fix has arrived yet.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFixAt.IsZero() {
		return s.CreatedAt
	}
	return s.lastFixAt
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFixAt = t
}

// Store holds all live tracking sessions in memory, keyed by session ID.
//
// The store is used to:
//   - Route client-pushed fixes to the right tracker.
//   - Serve trace and heading reads for a session.
//   - Evict sessions whose clients stopped reporting.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates and returns a new Store with an initialized session map.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new tracking session. granted carries the client's location
// permission decision, and seed optionally supplies a coarse starting
// position recorded before the first pushed fix.
//
// Create fails with tracker.ErrPermissionDenied when granted is false; no
// session is stored in that case.
func (st *Store) Create(ctx context.Context, granted bool, seed *tracker.Fix) (*Session, error) {
	provider := &pushProvider{granted: granted, seed: seed}

	s := &Session{
		ID:        newSessionID(),
		CreatedAt: time.Now().UTC(),
		Tracker:   tracker.New(provider, st.logger),
		provider:  provider,
	}

	if err := s.Tracker.Start(ctx); err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	st.logger.Info("tracking session started", "session_id", s.ID)
	return s, nil
}

// Get retrieves a session by ID.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Push delivers a client-reported fix into the session's tracker.
func (st *Store) Push(id string, f tracker.Fix) error {
	s, err := st.Get(id)
	if err != nil {
		metrics.SessionFixesDropped.WithLabelValues("unknown_session").Inc()
		return err
	}

	if s.Tracker.State() == tracker.Stopped {
		metrics.SessionFixesDropped.WithLabelValues("stopped").Inc()
		return ErrStopped
	}

	if f.Time.IsZero() {
		f.Time = time.Now().UTC()
	}
	if !s.provider.Push(f) {
		metrics.SessionFixesDropped.WithLabelValues("stopped").Inc()
		return ErrStopped
	}

	s.touch(f.Time)
	metrics.SessionFixes.Inc()
	return nil
}

// Stop ends a session's tracking. The session stays readable until the
// cleanup routine evicts it, so clients can fetch the final trace.
func (st *Store) Stop(id string) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}

	if s.Tracker.State() != tracker.Stopped {
		s.Tracker.Stop()
		st.logger.Info("tracking session stopped", "session_id", s.ID, "trace_points", len(s.Tracker.Trace()))
	}
	return nil
}

// Count returns the number of sessions currently held in memory.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.sessions)
}

// ClearRoutine runs a background process that periodically removes sessions
// whose last activity exceeds the given threshold.
//
// ctx: Context for canceling the routine.
// timeInterval: Interval at which cleanup checks are performed.
// threshold: Duration after which an inactive session is removed.
func (st *Store) ClearRoutine(ctx context.Context, timeInterval, threshold time.Duration) {
	ticker := time.NewTicker(timeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.clear(threshold)
		case <-ctx.Done():
			return
		}
	}
}

// clear removes sessions that have not seen a fix within the threshold,
// stopping any that are still tracking so their subscriptions are released.
func (st *Store) clear(threshold time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.sessions) == 0 {
		return
	}

	now := time.Now().UTC()

	for id, s := range st.sessions {
		if now.Sub(s.LastActivity()) <= threshold {
			continue
		}

		if s.Tracker.State() != tracker.Stopped {
			s.Tracker.Stop()
		}
		delete(st.sessions, id)
		st.logger.Info("stale tracking session removed", "session_id", id)
	}
}

// newSessionID returns a 16-byte random hex identifier.
func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("session id generation failed: %v", err))
	}
	return hex.EncodeToString(buf)
}
