package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// SlotFinderConfig tunes the slot scan.
type SlotFinderConfig struct {
	// Step is the scan granularity; candidate slots start on these
	// boundaries within the preferred window.
	Step time.Duration

	// RelocationHorizon bounds how far past a moved event's original start
	// the relocation search may reach.
	RelocationHorizon time.Duration
}

// DefaultSlotFinderConfig returns the standard scan settings.
func DefaultSlotFinderConfig() SlotFinderConfig {
	return SlotFinderConfig{
		Step:              15 * time.Minute,
		RelocationHorizon: 7 * 24 * time.Hour,
	}
}

// CandidateSlot is a scanned slot that was not free, with the conflicts
// occupying it.
type CandidateSlot struct {
	Slot      domain.TimeRange
	Conflicts []domain.Conflict
}

// SlotScan is the outcome of scanning a preferred window.
type SlotScan struct {
	// Slot is the first free slot; valid only when Found.
	Slot  domain.TimeRange
	Found bool

	// Conflicts is the deduplicated union of every conflict seen during an
	// exhausted scan, in first-seen order.
	Conflicts *domain.ConflictSet

	// Candidates holds one representative slot per distinct conflict
	// combination, for relocation planning.
	Candidates []CandidateSlot
}

// SlotFinder scans business-hours slots within a preferred window.
type SlotFinder struct {
	resolver *AvailabilityResolver
	hours    domain.BusinessHours
	config   SlotFinderConfig
	logger   *slog.Logger
}

// NewSlotFinder creates a slot finder.
func NewSlotFinder(resolver *AvailabilityResolver, hours domain.BusinessHours, config SlotFinderConfig, logger *slog.Logger) *SlotFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotFinder{resolver: resolver, hours: hours, config: config, logger: logger}
}

// FindSlot scans the request's preferred window earliest-first and returns
// either the first slot free for every attendee or the full conflict picture
// of an exhausted scan. Availability is fetched once for the whole scan.
func (f *SlotFinder) FindSlot(ctx context.Context, request domain.MeetingRequest) (SlotScan, error) {
	eventsByAttendee, err := f.resolver.AttendeeEvents(ctx, request.Attendees, request.Preferred)
	if err != nil {
		return SlotScan{}, err
	}

	scan := SlotScan{Conflicts: domain.NewConflictSet()}
	seen := make(map[string]bool) // conflict combination -> already a candidate

	cursor := f.hours.NextOpen(request.Preferred.Start)
	for {
		slot := domain.TimeRange{Start: cursor, End: cursor.Add(request.Duration)}
		if slot.End.After(request.Preferred.End) {
			break
		}
		if !f.hours.ContainsRange(slot) {
			cursor = f.hours.NextWindowStart(cursor)
			continue
		}

		conflicts := conflictsAt(slot, request.Attendees, eventsByAttendee, "")
		if conflicts.Len() == 0 {
			scan.Slot = slot
			scan.Found = true
			return scan, nil
		}

		slotConflicts := conflicts.Conflicts()
		scan.Conflicts.AddAll(slotConflicts)

		key := conflictKey(slotConflicts)
		if !seen[key] {
			seen[key] = true
			scan.Candidates = append(scan.Candidates, CandidateSlot{Slot: slot, Conflicts: slotConflicts})
		}

		cursor = cursor.Add(f.config.Step)
	}

	f.logger.Debug("slot scan exhausted",
		"title", request.Title,
		"window", request.Preferred.String(),
		"conflicts", scan.Conflicts.Len(),
		"candidates", len(scan.Candidates),
	)
	return scan, nil
}

// FindRelocation searches for a new home for a conflicting event: the
// earliest business-hours slot at or after the event's original start where
// all of its attendees are free, excluding the slot reserved for the
// incoming meeting. Relocations already planned for the same proposal count
// as busy wherever they share an attendee, so one plan cannot move two
// events onto each other. The search looks up fresh availability because the
// event may involve attendees outside the original request.
func (f *SlotFinder) FindRelocation(ctx context.Context, conflict domain.Conflict, reserved domain.TimeRange, planned []domain.Conflict) (domain.TimeRange, bool, error) {
	duration := conflict.Original.Duration()
	horizon := conflict.Original.Start.Add(f.config.RelocationHorizon)

	window := domain.TimeRange{Start: conflict.Original.Start, End: horizon}
	eventsByAttendee, err := f.resolver.AttendeeEvents(ctx, conflict.Attendees, window)
	if err != nil {
		return domain.TimeRange{}, false, err
	}

	cursor := f.hours.NextOpen(conflict.Original.Start)
	for {
		slot := domain.TimeRange{Start: cursor, End: cursor.Add(duration)}
		if slot.End.After(horizon) {
			return domain.TimeRange{}, false, nil
		}
		if !f.hours.ContainsRange(slot) {
			cursor = f.hours.NextWindowStart(cursor)
			continue
		}

		if !slot.Overlaps(reserved) && !collidesWithPlanned(slot, conflict, planned) {
			occupied := conflictsAt(slot, conflict.Attendees, eventsByAttendee, conflict.EventID)
			if occupied.Len() == 0 {
				return slot, true, nil
			}
		}

		cursor = cursor.Add(f.config.Step)
	}
}

// collidesWithPlanned reports whether the slot overlaps an already-planned
// relocation of an event sharing an attendee with the one being moved.
func collidesWithPlanned(slot domain.TimeRange, conflict domain.Conflict, planned []domain.Conflict) bool {
	for _, moved := range planned {
		if moved.Relocated == nil || !slot.Overlaps(*moved.Relocated) {
			continue
		}
		if sharesAttendee(conflict.Attendees, moved.Attendees) {
			return true
		}
	}
	return false
}

func sharesAttendee(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, attendee := range a {
		set[normalizeKey(attendee)] = true
	}
	for _, attendee := range b {
		if set[normalizeKey(attendee)] {
			return true
		}
	}
	return false
}

// conflictsAt collects the events overlapping the slot across the given
// attendees' calendars, merged by event id. excludeID skips the event being
// relocated so it never conflicts with itself.
func conflictsAt(slot domain.TimeRange, attendees []string, eventsByAttendee map[string][]calendarApp.Event, excludeID string) *domain.ConflictSet {
	set := domain.NewConflictSet()
	for _, attendee := range attendees {
		for _, event := range eventsByAttendee[attendee] {
			if event.ID == excludeID {
				continue
			}
			if !event.Overlaps(slot.Start, slot.End) {
				continue
			}
			conflictAttendees := event.Attendees
			if len(conflictAttendees) == 0 {
				conflictAttendees = []string{attendee}
			}
			set.Add(domain.Conflict{
				EventID:   event.ID,
				Summary:   event.Title,
				Original:  domain.TimeRange{Start: event.Start, End: event.End},
				Attendees: conflictAttendees,
				Priority:  event.Priority,
			})
		}
	}
	return set
}

func conflictKey(conflicts []domain.Conflict) string {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.EventID)
	}
	// Insertion order is deterministic for a fixed scan, but the key must
	// not depend on it.
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
