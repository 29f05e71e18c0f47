package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

const (
	// sessionKeyPrefix namespaces session keys: accord:session:{id}
	sessionKeyPrefix = "accord:session:"

	// expiredRetention keeps sessions readable past their deadline so
	// callers get an expired-proposal error instead of not-found.
	expiredRetention = 24 * time.Hour

	// casRetries bounds optimistic transaction retries on contention.
	casRetries = 5
)

// RedisStore persists sessions in Redis with TTLs. Transitions use WATCH
// transactions, so concurrent resolutions of one session serialize.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ domain.SessionStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Put stores a new session.
func (r *RedisStore) Put(ctx context.Context, session *domain.NegotiationSession) error {
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.key(session.ID()), payload, r.retention(session)).Result()
	if err != nil {
		return fmt.Errorf("store session %s: %w", session.ID(), err)
	}
	if !ok {
		return domain.NewValidationError("session %s already exists", session.ID())
	}
	return nil
}

// Get returns the stored session.
func (r *RedisStore) Get(ctx context.Context, id uuid.UUID) (*domain.NegotiationSession, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewNotFoundError("negotiation session %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decodeSession(data)
}

// Update applies fn inside a WATCH transaction and persists the result even
// when fn fails, so lazy expiry transitions stick.
func (r *RedisStore) Update(ctx context.Context, id uuid.UUID, fn func(*domain.NegotiationSession) error) (*domain.NegotiationSession, error) {
	key := r.key(id)
	var session *domain.NegotiationSession
	var fnErr error

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.NewNotFoundError("negotiation session %s", id)
		}
		if err != nil {
			return fmt.Errorf("load session %s: %w", id, err)
		}

		session, err = decodeSession(data)
		if err != nil {
			return err
		}
		fnErr = fn(session)

		payload, err := encodeSession(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.retention(session))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := r.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return session, err
		}
		return session, fnErr
	}
	return nil, fmt.Errorf("update session %s: transaction contention", id)
}

// Delete removes the session; missing keys are fine.
func (r *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Sweep is a no-op for Redis; key TTLs handle removal.
func (r *RedisStore) Sweep(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (r *RedisStore) key(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func (r *RedisStore) retention(session *domain.NegotiationSession) time.Duration {
	ttl := time.Until(session.ExpiresAt()) + expiredRetention
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

// Wire representation. Proposals drop their request copy; the session-level
// request is restored into each proposal on decode.

type timeRangeDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type conflictDTO struct {
	EventID   string        `json:"event_id"`
	Summary   string        `json:"summary"`
	Original  timeRangeDTO  `json:"original"`
	Relocated *timeRangeDTO `json:"relocated,omitempty"`
	Attendees []string      `json:"attendees"`
	Priority  int           `json:"priority"`
}

type proposalDTO struct {
	ID          uuid.UUID     `json:"id"`
	Slot        timeRangeDTO  `json:"slot"`
	Conflicts   []conflictDTO `json:"conflicts"`
	Affected    []string      `json:"affected_attendees"`
	ImpactScore float64       `json:"impact_score"`
}

type requestDTO struct {
	Title       string       `json:"title"`
	Duration    int64        `json:"duration_seconds"`
	Organizer   string       `json:"organizer"`
	Attendees   []string     `json:"attendees"`
	Priority    int          `json:"priority"`
	Description string       `json:"description,omitempty"`
	Recurring   bool         `json:"recurring,omitempty"`
	Preferred   timeRangeDTO `json:"preferred"`
}

type sessionDTO struct {
	ID        uuid.UUID     `json:"id"`
	Organizer string        `json:"organizer"`
	Request   requestDTO    `json:"request"`
	Proposals []proposalDTO `json:"proposals"`
	Notes     []string      `json:"notes,omitempty"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func encodeSession(session *domain.NegotiationSession) ([]byte, error) {
	request := session.Request()
	dto := sessionDTO{
		ID:        session.ID(),
		Organizer: session.Organizer(),
		Request: requestDTO{
			Title:       request.Title,
			Duration:    int64(request.Duration.Seconds()),
			Organizer:   request.Organizer,
			Attendees:   request.Attendees,
			Priority:    request.Priority,
			Description: request.Description,
			Recurring:   request.Recurring,
			Preferred:   toRangeDTO(request.Preferred),
		},
		Notes:     session.Notes(),
		Status:    string(session.Status()),
		CreatedAt: session.CreatedAt(),
		UpdatedAt: session.UpdatedAt(),
		ExpiresAt: session.ExpiresAt(),
	}

	for _, p := range session.Proposals() {
		proposal := proposalDTO{
			ID:          p.ID,
			Slot:        toRangeDTO(p.Slot),
			Affected:    p.AffectedAttendees,
			ImpactScore: p.ImpactScore,
		}
		for _, c := range p.Conflicts {
			conflict := conflictDTO{
				EventID:   c.EventID,
				Summary:   c.Summary,
				Original:  toRangeDTO(c.Original),
				Attendees: c.Attendees,
				Priority:  c.Priority,
			}
			if c.Relocated != nil {
				relocated := toRangeDTO(*c.Relocated)
				conflict.Relocated = &relocated
			}
			proposal.Conflicts = append(proposal.Conflicts, conflict)
		}
		dto.Proposals = append(dto.Proposals, proposal)
	}

	payload, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", session.ID(), err)
	}
	return payload, nil
}

func decodeSession(data []byte) (*domain.NegotiationSession, error) {
	var dto sessionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	request := domain.MeetingRequest{
		Title:       dto.Request.Title,
		Duration:    time.Duration(dto.Request.Duration) * time.Second,
		Organizer:   dto.Request.Organizer,
		Attendees:   dto.Request.Attendees,
		Priority:    dto.Request.Priority,
		Description: dto.Request.Description,
		Recurring:   dto.Request.Recurring,
		Preferred:   fromRangeDTO(dto.Request.Preferred),
	}

	proposals := make([]domain.Proposal, 0, len(dto.Proposals))
	for _, p := range dto.Proposals {
		proposal := domain.Proposal{
			ID:                p.ID,
			Request:           request,
			Slot:              fromRangeDTO(p.Slot),
			AffectedAttendees: p.Affected,
			ImpactScore:       p.ImpactScore,
		}
		for _, c := range p.Conflicts {
			conflict := domain.Conflict{
				EventID:   c.EventID,
				Summary:   c.Summary,
				Original:  fromRangeDTO(c.Original),
				Attendees: c.Attendees,
				Priority:  c.Priority,
			}
			if c.Relocated != nil {
				relocated := fromRangeDTO(*c.Relocated)
				conflict.Relocated = &relocated
			}
			proposal.Conflicts = append(proposal.Conflicts, conflict)
		}
		proposals = append(proposals, proposal)
	}

	return domain.RehydrateNegotiationSession(
		dto.ID, dto.Organizer, request, proposals, dto.Notes,
		domain.SessionStatus(dto.Status), dto.CreatedAt, dto.UpdatedAt, dto.ExpiresAt,
	), nil
}

func toRangeDTO(r domain.TimeRange) timeRangeDTO {
	return timeRangeDTO{Start: r.Start, End: r.End}
}

func fromRangeDTO(dto timeRangeDTO) domain.TimeRange {
	return domain.TimeRange{Start: dto.Start, End: dto.End}
}
