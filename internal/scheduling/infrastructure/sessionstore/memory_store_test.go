package sessionstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
	"github.com/felixgeelhaar/accord/internal/scheduling/infrastructure/sessionstore"
)

func newSession(t *testing.T, ttl time.Duration) *domain.NegotiationSession {
	t.Helper()

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	preferred, err := domain.NewTimeRange(start, start.Add(8*time.Hour))
	require.NoError(t, err)

	request, err := domain.NewMeetingRequest(
		"Incident Review", 30*time.Minute, "alice", []string{"bob"}, 4, "", preferred)
	require.NoError(t, err)

	return domain.NewNegotiationSession(request, nil, nil, ttl)
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)

	require.NoError(t, store.Put(ctx, session))

	loaded, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, session.ID(), loaded.ID())
	assert.Equal(t, domain.SessionPending, loaded.Status())
}

func TestMemoryStore_Put_RejectsDuplicateID(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)

	require.NoError(t, store.Put(ctx, session))
	err := store.Put(ctx, session)

	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestMemoryStore_Get_UnknownID(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)

	_, err := store.Get(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryStore_Update(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)
	require.NoError(t, store.Put(ctx, session))

	updated, err := store.Update(ctx, session.ID(), func(s *domain.NegotiationSession) error {
		return s.Reject(time.Now())
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SessionRejected, updated.Status())

	loaded, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionRejected, loaded.Status(), "transition persisted")
}

func TestMemoryStore_Update_PersistsTransitionWhenFnFails(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()

	// Already expired: EnsurePending fails but must record the transition.
	session := newSession(t, -time.Minute)
	require.NoError(t, store.Put(ctx, session))

	_, err := store.Update(ctx, session.ID(), func(s *domain.NegotiationSession) error {
		return s.Accept(time.Now())
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindExpiredProposal, domain.KindOf(err))

	loaded, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExpired, loaded.Status())
}

func TestMemoryStore_HandsOutDetachedCopies(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)
	require.NoError(t, store.Put(ctx, session))

	// Mutating the pointer given to Put must not reach the store.
	require.NoError(t, session.Reject(time.Now()))
	loaded, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, loaded.Status())

	// Nor mutating a Get result.
	require.NoError(t, loaded.Reject(time.Now()))
	again, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPending, again.Status())

	// An Update result is detached from later updates.
	accepted, err := store.Update(ctx, session.ID(), func(s *domain.NegotiationSession) error {
		return s.Accept(time.Now())
	})
	require.NoError(t, err)
	_, err = store.Update(ctx, session.ID(), func(s *domain.NegotiationSession) error {
		s.Reopen()
		return s.Reject(time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAccepted, accepted.Status(), "earlier result unaffected")
}

func TestMemoryStore_ConcurrentResolutions(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)
	require.NoError(t, store.Put(ctx, session))

	const workers = 8
	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, session.ID(), func(s *domain.NegotiationSession) error {
				return s.Accept(time.Now())
			})
			if err == nil {
				accepted.Add(1)
			}
			loaded, getErr := store.Get(ctx, session.ID())
			if assert.NoError(t, getErr) {
				assert.NotEmpty(t, loaded.Status())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load(), "exactly one accept wins")
	loaded, err := store.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAccepted, loaded.Status())
}

func TestMemoryStore_Delete(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()
	session := newSession(t, time.Hour)
	require.NoError(t, store.Put(ctx, session))

	require.NoError(t, store.Delete(ctx, session.ID()))

	_, err := store.Get(ctx, session.ID())
	assert.True(t, domain.IsNotFound(err))

	assert.NoError(t, store.Delete(ctx, session.ID()), "deleting a missing session is fine")
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := sessionstore.NewMemoryStore(nil)
	ctx := context.Background()

	expired := newSession(t, -time.Minute)
	live := newSession(t, time.Hour)
	require.NoError(t, store.Put(ctx, expired))
	require.NoError(t, store.Put(ctx, live))

	removed, err := store.Sweep(ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, expired.ID())
	assert.True(t, domain.IsNotFound(err))

	_, err = store.Get(ctx, live.ID())
	assert.NoError(t, err)
}
