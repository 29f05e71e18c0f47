package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// AvailabilityResolver gathers calendar state for a set of attendees. It is
// the single fan-out point of the scheduling pipeline: one goroutine per
// attendee, first failure cancels the rest.
type AvailabilityResolver struct {
	calendar calendarApp.Client
	hours    domain.BusinessHours
	logger   *slog.Logger
}

// NewAvailabilityResolver creates a resolver over the calendar port.
func NewAvailabilityResolver(calendar calendarApp.Client, hours domain.BusinessHours, logger *slog.Logger) *AvailabilityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityResolver{calendar: calendar, hours: hours, logger: logger}
}

// AttendeeEvents fetches every attendee's events in the window concurrently.
// Partial results are never returned: one failed lookup fails the whole
// operation, because a proposal built on incomplete availability could move
// meetings that did not need to move.
func (r *AvailabilityResolver) AttendeeEvents(ctx context.Context, attendees []string, window domain.TimeRange) (map[string][]calendarApp.Event, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make(map[string][]calendarApp.Event, len(attendees))

	started := time.Now()
	for _, attendee := range attendees {
		group.Go(func() error {
			events, err := r.calendar.Events(groupCtx, attendee, window.Start, window.End)
			if err != nil {
				return err
			}
			mu.Lock()
			results[attendee] = events
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("availability resolved",
		"attendees", len(attendees),
		"window", window.String(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return results, nil
}

// BusyIntervals returns each attendee's busy time in the window, clamped to
// business hours and coalesced.
func (r *AvailabilityResolver) BusyIntervals(ctx context.Context, attendees []string, window domain.TimeRange) (map[string][]domain.TimeRange, error) {
	events, err := r.AttendeeEvents(ctx, attendees, window)
	if err != nil {
		return nil, err
	}

	busy := make(map[string][]domain.TimeRange, len(events))
	for attendee, attendeeEvents := range events {
		var ranges []domain.TimeRange
		for _, event := range attendeeEvents {
			for _, section := range r.hours.Clip(domain.TimeRange{Start: event.Start, End: event.End}) {
				if clamped, ok := section.Intersect(window); ok {
					ranges = append(ranges, clamped)
				}
			}
		}
		busy[attendee] = domain.MergeRanges(ranges)
	}
	return busy, nil
}

// FreeWindows returns the participant's open business-hours time in the
// window: the clipped window minus the merged busy intervals.
func (r *AvailabilityResolver) FreeWindows(ctx context.Context, participant string, window domain.TimeRange) ([]domain.TimeRange, []domain.TimeRange, error) {
	busyByAttendee, err := r.BusyIntervals(ctx, []string{participant}, window)
	if err != nil {
		return nil, nil, err
	}
	busy := busyByAttendee[participant]

	var free []domain.TimeRange
	for _, open := range r.hours.Clip(window) {
		cursor := open.Start
		for _, b := range busy {
			section, ok := b.Intersect(open)
			if !ok {
				continue
			}
			if section.Start.After(cursor) {
				free = append(free, domain.TimeRange{Start: cursor, End: section.Start})
			}
			if section.End.After(cursor) {
				cursor = section.End
			}
		}
		if cursor.Before(open.End) {
			free = append(free, domain.TimeRange{Start: cursor, End: open.End})
		}
	}
	return free, busy, nil
}
