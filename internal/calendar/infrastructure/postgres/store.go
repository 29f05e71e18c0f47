// Package postgres provides a PostgreSQL-backed calendar store for shared
// deployments.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	start_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	organizer   TEXT NOT NULL,
	priority    INT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	recurring   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS event_attendees (
	event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	attendee TEXT NOT NULL,
	PRIMARY KEY (event_id, attendee)
);

CREATE INDEX IF NOT EXISTS idx_event_attendees_attendee ON event_attendees(attendee);

CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL
);
`

// Store implements the calendar client and directory on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ application.Client    = (*Store)(nil)
	_ application.Directory = (*Store)(nil)
)

// Open connects to PostgreSQL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Events returns the participant's events intersecting [start, end).
func (s *Store) Events(ctx context.Context, participant string, start, end time.Time) ([]application.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.title, e.start_at, e.end_at, e.organizer, e.priority, e.description, e.recurring,
		       ARRAY(SELECT attendee FROM event_attendees a WHERE a.event_id = e.id ORDER BY attendee)
		FROM events e
		JOIN event_attendees ea ON ea.event_id = e.id
		WHERE ea.attendee = $1 AND e.start_at < $2 AND e.end_at > $3
		ORDER BY e.start_at`,
		normalize(participant), end, start)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", participant, err)
	}
	defer rows.Close()

	var events []application.Event
	for rows.Next() {
		var event application.Event
		if err := rows.Scan(&event.ID, &event.Title, &event.Start, &event.End,
			&event.Organizer, &event.Priority, &event.Description, &event.Recurring,
			&event.Attendees); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Create places the event on every attendee's calendar.
func (s *Store) Create(ctx context.Context, event application.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create event: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, title, start_at, end_at, organizer, priority, description, recurring)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Title, event.Start, event.End,
		event.Organizer, event.Priority, event.Description, event.Recurring)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create event %s: %w", event.ID, application.ErrDuplicateEvent)
		}
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}

	for _, attendee := range event.Attendees {
		if _, err := tx.Exec(ctx, `
			INSERT INTO event_attendees (event_id, attendee) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			event.ID, normalize(attendee)); err != nil {
			return fmt.Errorf("insert attendee for event %s: %w", event.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Delete removes the event from all calendars.
func (s *Store) Delete(ctx context.Context, eventID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete event %s: %w", eventID, application.ErrEventNotFound)
	}
	return nil
}

// Register adds or renames a directory agent.
func (s *Store) Register(ctx context.Context, agent application.Agent) error {
	if agent.ID == "" {
		return application.ErrEmptyAgentID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, name, registered_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		normalize(agent.ID), agent.Name, agent.RegisteredAt)
	if err != nil {
		return fmt.Errorf("register agent %s: %w", agent.ID, err)
	}
	return nil
}

// Get returns a registered agent.
func (s *Store) Get(ctx context.Context, id string) (application.Agent, error) {
	var agent application.Agent
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, registered_at FROM agents WHERE id = $1`, normalize(id)).
		Scan(&agent.ID, &agent.Name, &agent.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return application.Agent{}, fmt.Errorf("agent %s: %w", id, application.ErrAgentNotFound)
		}
		return application.Agent{}, fmt.Errorf("get agent %s: %w", id, err)
	}
	return agent, nil
}

// List returns all registered agents ordered by registration time.
func (s *Store) List(ctx context.Context) ([]application.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, registered_at FROM agents ORDER BY registered_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []application.Agent
	for rows.Next() {
		var agent application.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.RegisteredAt); err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func normalize(participant string) string {
	return strings.ToLower(strings.TrimSpace(participant))
}
