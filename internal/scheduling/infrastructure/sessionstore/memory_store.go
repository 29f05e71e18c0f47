// Package sessionstore persists negotiation sessions between the scheduling
// call that opens them and the negotiate call that resolves them.
package sessionstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// MemoryStore keeps sessions in process memory. Every operation hands out a
// detached copy, so an aggregate held by one caller never races a concurrent
// Update. Expired sessions are removed lazily and by the optional sweeper.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.NegotiationSession
	logger   *slog.Logger
}

var _ domain.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*domain.NegotiationSession),
		logger:   logger,
	}
}

// Put stores a new session. Re-using an id is a bug in the caller.
func (s *MemoryStore) Put(_ context.Context, session *domain.NegotiationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID()]; exists {
		return domain.NewValidationError("session %s already exists", session.ID())
	}
	stored, err := cloneSession(session)
	if err != nil {
		return err
	}
	s.sessions[session.ID()] = stored
	return nil
}

// Get returns a detached copy of the stored session.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*domain.NegotiationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("negotiation session %s", id)
	}
	return cloneSession(session)
}

// Update runs fn against a copy under the store lock and persists the result
// even when fn fails, so lazy expiry transitions stick. Transitions happen
// only here, so two concurrent accepts serialize and the second sees a
// terminal status. The returned session is detached from the stored one.
func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, fn func(*domain.NegotiationSession) error) (*domain.NegotiationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("negotiation session %s", id)
	}
	session, err := cloneSession(stored)
	if err != nil {
		return nil, err
	}
	fnErr := fn(session)

	persisted, err := cloneSession(session)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = persisted
	return session, fnErr
}

// Delete removes the session if present.
func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep drops sessions whose deadline passed before now.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept expired sessions", "removed", removed)
	}
	return removed, nil
}

// cloneSession deep-copies a session through the wire codec. Domain events
// recorded on the input are not carried over; callers publish from the
// pointer they hold.
func cloneSession(session *domain.NegotiationSession) (*domain.NegotiationSession, error) {
	payload, err := encodeSession(session)
	if err != nil {
		return nil, err
	}
	return decodeSession(payload)
}

// StartSweeper runs Sweep on the interval until the context ends. Sweeping
// is an optimization; lazy expiry keeps correctness without it.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := s.Sweep(ctx, now); err != nil {
					s.logger.Error("session sweep failed", "error", err)
				}
			}
		}
	}()
}
