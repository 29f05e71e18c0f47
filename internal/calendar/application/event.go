package application

import (
	"context"
	"strings"
	"time"
)

// Event is the calendar-side view of a meeting. The scheduling context builds
// richer structures on top; providers only ever see this shape.
type Event struct {
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	Organizer   string
	Attendees   []string
	Priority    int
	Description string
	Recurring   bool
}

// Overlaps reports whether the event intersects the half-open window
// [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}

// HasAttendee reports whether the participant is on the event.
func (e Event) HasAttendee(participant string) bool {
	for _, a := range e.Attendees {
		if strings.EqualFold(a, participant) {
			return true
		}
	}
	return false
}

// Client is the port to a calendar backend. Events are visible on every
// attendee's calendar; Delete removes the event everywhere by id.
type Client interface {
	// Events returns the participant's events intersecting [start, end),
	// sorted by start time.
	Events(ctx context.Context, participant string, start, end time.Time) ([]Event, error)

	// Create places the event on every attendee's calendar.
	Create(ctx context.Context, event Event) error

	// Delete removes the event from all calendars it appears on.
	Delete(ctx context.Context, eventID string) error
}
