package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// RescheduledEvent records one relocation applied by an accepted proposal.
type RescheduledEvent struct {
	EventID    string
	NewEventID string
	Title      string
	From       domain.TimeRange
	To         domain.TimeRange
}

// ExecutionReport is the outcome of applying a proposal or a force.
type ExecutionReport struct {
	Created     calendarApp.Event
	Rescheduled []RescheduledEvent
}

// ExecutionEngine commits scheduling decisions to the calendars. A
// relocation is delete-then-recreate, and every deleted event is recreated
// at its original time if anything later fails: an event may end up moved or
// unmoved, never missing.
type ExecutionEngine struct {
	calendar calendarApp.Client
	locks    keyedMutex
	logger   *slog.Logger
}

// NewExecutionEngine creates an execution engine over the calendar port.
func NewExecutionEngine(calendar calendarApp.Client, logger *slog.Logger) *ExecutionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionEngine{calendar: calendar, logger: logger}
}

// Apply executes an accepted proposal: each conflicting event is deleted and
// recreated at its relocated time, then the requested meeting is created in
// the cleared slot. Mutations are never retried; on failure, compensation
// restores every event that was deleted but not yet replaced.
func (e *ExecutionEngine) Apply(ctx context.Context, proposal domain.Proposal) (ExecutionReport, error) {
	unlock := e.locks.lock(touchedCalendars(proposal))
	defer unlock()

	report := ExecutionReport{}
	var deleted []domain.Conflict // deleted but not yet replaced

	for _, conflict := range proposal.Conflicts {
		if conflict.Relocated == nil {
			return ExecutionReport{}, domain.NewConflictInfeasibleError(
				fmt.Sprintf("proposal conflict %q has no relocation", conflict.Summary))
		}

		if err := e.calendar.Delete(ctx, conflict.EventID); err != nil {
			e.compensate(ctx, deleted)
			return ExecutionReport{}, err
		}
		deleted = append(deleted, conflict)

		moved := e.relocatedEvent(conflict)
		if err := e.calendar.Create(ctx, moved); err != nil {
			e.compensate(ctx, deleted)
			return ExecutionReport{}, err
		}
		deleted = deleted[:len(deleted)-1]

		report.Rescheduled = append(report.Rescheduled, RescheduledEvent{
			EventID:    conflict.EventID,
			NewEventID: moved.ID,
			Title:      conflict.Summary,
			From:       conflict.Original,
			To:         *conflict.Relocated,
		})
		e.logger.Info("event rescheduled",
			"event_id", conflict.EventID,
			"title", conflict.Summary,
			"from", conflict.Original.String(),
			"to", conflict.Relocated.String(),
		)
	}

	created, err := e.createRequested(ctx, proposal.Request, proposal.Slot)
	if err != nil {
		// Moved events stay moved; nothing is missing. Only unreplaced
		// deletions need restoring, and at this point there are none.
		return ExecutionReport{}, err
	}
	report.Created = created
	return report, nil
}

// ForceSchedule creates the requested meeting at the slot without touching
// any existing event, conflicts included.
func (e *ExecutionEngine) ForceSchedule(ctx context.Context, request domain.MeetingRequest, slot domain.TimeRange) (ExecutionReport, error) {
	unlock := e.locks.lock(normalizeAll(request.Attendees))
	defer unlock()

	created, err := e.createRequested(ctx, request, slot)
	if err != nil {
		return ExecutionReport{}, err
	}
	return ExecutionReport{Created: created}, nil
}

// Schedule creates the requested meeting in a slot the finder verified free.
func (e *ExecutionEngine) Schedule(ctx context.Context, request domain.MeetingRequest, slot domain.TimeRange) (ExecutionReport, error) {
	return e.ForceSchedule(ctx, request, slot)
}

func (e *ExecutionEngine) createRequested(ctx context.Context, request domain.MeetingRequest, slot domain.TimeRange) (calendarApp.Event, error) {
	event := calendarApp.Event{
		ID:          uuid.NewString(),
		Title:       request.Title,
		Start:       slot.Start,
		End:         slot.End,
		Organizer:   request.Organizer,
		Attendees:   request.Attendees,
		Priority:    request.Priority,
		Description: request.Description,
		Recurring:   request.Recurring,
	}
	if err := e.calendar.Create(ctx, event); err != nil {
		return calendarApp.Event{}, err
	}
	return event, nil
}

func (e *ExecutionEngine) relocatedEvent(conflict domain.Conflict) calendarApp.Event {
	description := fmt.Sprintf("Rescheduled from %s due to conflict", conflict.Original)
	return calendarApp.Event{
		ID:          uuid.NewString(),
		Title:       conflict.Summary,
		Start:       conflict.Relocated.Start,
		End:         conflict.Relocated.End,
		Attendees:   conflict.Attendees,
		Priority:    conflict.Priority,
		Description: description,
	}
}

// compensate restores deleted-but-unreplaced events at their original times.
// Restore failures are logged and skipped: aborting compensation would leave
// even more events missing.
func (e *ExecutionEngine) compensate(ctx context.Context, deleted []domain.Conflict) {
	for _, conflict := range deleted {
		restored := calendarApp.Event{
			ID:        conflict.EventID,
			Title:     conflict.Summary,
			Start:     conflict.Original.Start,
			End:       conflict.Original.End,
			Attendees: conflict.Attendees,
			Priority:  conflict.Priority,
		}
		if err := e.calendar.Create(ctx, restored); err != nil {
			e.logger.Error("compensation failed, event remains deleted",
				"event_id", conflict.EventID,
				"title", conflict.Summary,
				"error", err,
			)
			continue
		}
		e.logger.Warn("event restored after failed apply",
			"event_id", conflict.EventID,
			"title", conflict.Summary,
		)
	}
}

// touchedCalendars returns the sorted set of calendars a proposal mutates.
func touchedCalendars(proposal domain.Proposal) []string {
	set := make(map[string]bool)
	for _, attendee := range proposal.Request.Attendees {
		set[normalizeKey(attendee)] = true
	}
	for _, conflict := range proposal.Conflicts {
		for _, attendee := range conflict.Attendees {
			set[normalizeKey(attendee)] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeAll(attendees []string) []string {
	keys := make([]string, 0, len(attendees))
	for _, a := range attendees {
		keys = append(keys, normalizeKey(a))
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(attendee string) string {
	return strings.ToLower(strings.TrimSpace(attendee))
}

// keyedMutex serializes work per calendar. Locks are acquired in sorted key
// order so two overlapping applies cannot deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (m *keyedMutex) lock(keys []string) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	// Repeated keys must collapse to one acquisition or the goroutine
	// deadlocks against itself.
	mutexes := make([]*sync.Mutex, 0, len(keys))
	taken := make(map[string]bool, len(keys))
	for _, key := range keys {
		if taken[key] {
			continue
		}
		taken[key] = true
		if _, ok := m.locks[key]; !ok {
			m.locks[key] = &sync.Mutex{}
		}
		mutexes = append(mutexes, m.locks[key])
	}
	m.mu.Unlock()

	for _, mutex := range mutexes {
		mutex.Lock()
	}
	return func() {
		for i := len(mutexes) - 1; i >= 0; i-- {
			mutexes[i].Unlock()
		}
	}
}
