package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStore persists negotiation sessions between the scheduling call
// that opens them and the negotiate call that resolves them.
type SessionStore interface {
	// Put stores a new session.
	Put(ctx context.Context, session *NegotiationSession) error

	// Get returns the session, or a NotFoundError if the id is unknown.
	Get(ctx context.Context, id uuid.UUID) (*NegotiationSession, error)

	// Update applies fn to the stored session while holding the store's
	// per-session exclusivity and persists the mutated session even when fn
	// fails, so lazy expiry transitions stick. fn's error is returned as-is.
	Update(ctx context.Context, id uuid.UUID, fn func(*NegotiationSession) error) (*NegotiationSession, error)

	// Delete removes the session; deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Sweep removes sessions whose deadline passed before now and returns
	// how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
