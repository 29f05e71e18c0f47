// Package sqlite provides a file-backed calendar store for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/accord/internal/calendar/application"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	start_at    TEXT NOT NULL,
	end_at      TEXT NOT NULL,
	organizer   TEXT NOT NULL,
	priority    INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	recurring   INTEGER NOT NULL DEFAULT 0
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
	registered_at TEXT NOT NULL
);
`

// Store implements the calendar client and directory on SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ application.Client    = (*Store)(nil)
	_ application.Directory = (*Store)(nil)
)

// Open connects to the SQLite database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Events returns the participant's events intersecting [start, end).
func (s *Store) Events(ctx context.Context, participant string, start, end time.Time) ([]application.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.start_at, e.end_at, e.organizer, e.priority, e.description, e.recurring
		FROM events e
		JOIN event_attendees ea ON ea.event_id = e.id
		WHERE ea.attendee = ? AND e.start_at < ? AND e.end_at > ?
		ORDER BY e.start_at`,
		normalize(participant), end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", participant, err)
	}
	defer rows.Close()

	var events []application.Event
	for rows.Next() {
		event, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		attendees, err := s.eventAttendees(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		event.Attendees = attendees
		events = append(events, event)
	}
	return events, rows.Err()
}

// Create places the event on every attendee's calendar.
func (s *Store) Create(ctx context.Context, event application.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create event: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, title, start_at, end_at, organizer, priority, description, recurring)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Title,
		event.Start.UTC().Format(time.RFC3339), event.End.UTC().Format(time.RFC3339),
		event.Organizer, event.Priority, event.Description, boolToInt(event.Recurring))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create event %s: %w", event.ID, application.ErrDuplicateEvent)
		}
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}

	for _, attendee := range event.Attendees {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_attendees (event_id, attendee) VALUES (?, ?)`,
			event.ID, normalize(attendee)); err != nil {
			return fmt.Errorf("insert attendee for event %s: %w", event.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the event from all calendars.
func (s *Store) Delete(ctx context.Context, eventID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("delete event %s: %w", eventID, application.ErrEventNotFound)
	}
	return nil
}

// Register adds or renames a directory agent.
func (s *Store) Register(ctx context.Context, agent application.Agent) error {
	if agent.ID == "" {
		return application.ErrEmptyAgentID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, registered_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		normalize(agent.ID), agent.Name, agent.RegisteredAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("register agent %s: %w", agent.ID, err)
	}
	return nil
}

// Get returns a registered agent.
func (s *Store) Get(ctx context.Context, id string) (application.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, registered_at FROM agents WHERE id = ?`, normalize(id))

	var agent application.Agent
	var registeredAt string
	if err := row.Scan(&agent.ID, &agent.Name, &registeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return application.Agent{}, fmt.Errorf("agent %s: %w", id, application.ErrAgentNotFound)
		}
		return application.Agent{}, fmt.Errorf("get agent %s: %w", id, err)
	}
	agent.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt)
	return agent, nil
}

// List returns all registered agents ordered by registration time.
func (s *Store) List(ctx context.Context) ([]application.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, registered_at FROM agents ORDER BY registered_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []application.Agent
	for rows.Next() {
		var agent application.Agent
		var registeredAt string
		if err := rows.Scan(&agent.ID, &agent.Name, &registeredAt); err != nil {
			return nil, err
		}
		agent.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt)
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func (s *Store) scanEvent(rows *sql.Rows) (application.Event, error) {
	var event application.Event
	var startAt, endAt string
	var recurring int
	if err := rows.Scan(&event.ID, &event.Title, &startAt, &endAt,
		&event.Organizer, &event.Priority, &event.Description, &recurring); err != nil {
		return application.Event{}, fmt.Errorf("scan event row: %w", err)
	}

	var err error
	if event.Start, err = time.Parse(time.RFC3339, startAt); err != nil {
		return application.Event{}, fmt.Errorf("parse event start: %w", err)
	}
	if event.End, err = time.Parse(time.RFC3339, endAt); err != nil {
		return application.Event{}, fmt.Errorf("parse event end: %w", err)
	}
	event.Recurring = recurring != 0
	return event, nil
}

func (s *Store) eventAttendees(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attendee FROM event_attendees WHERE event_id = ? ORDER BY attendee`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query attendees for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var attendees []string
	for rows.Next() {
		var attendee string
		if err := rows.Scan(&attendee); err != nil {
			return nil, err
		}
		attendees = append(attendees, attendee)
	}
	return attendees, rows.Err()
}

func normalize(participant string) string {
	return strings.ToLower(strings.TrimSpace(participant))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
