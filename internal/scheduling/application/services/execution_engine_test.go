package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/memory"
	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// failingClient wraps the memory store and fails Create for one title, to
// exercise the compensation path.
type failingClient struct {
	*memory.Store
	failTitle string
}

func (c *failingClient) Create(ctx context.Context, event calendarApp.Event) error {
	if event.Title == c.failTitle {
		return errors.New("backend unavailable")
	}
	return c.Store.Create(ctx, event)
}

func buildProposal(t *testing.T, f *calendarFixture, blocker calendarApp.Event, slot, relocated domain.TimeRange) domain.Proposal {
	t.Helper()
	request := newRequest(t, "Incident Review", slot.Duration(), 4,
		window(t, monday, 9, 17), "alice", "bob")

	set := domain.NewConflictSet()
	set.Add(domain.Conflict{
		EventID:   blocker.ID,
		Summary:   blocker.Title,
		Original:  domain.TimeRange{Start: blocker.Start, End: blocker.End},
		Relocated: &relocated,
		Attendees: blocker.Attendees,
		Priority:  blocker.Priority,
	})
	return domain.NewProposal(request, slot, set)
}

func TestExecutionEngine_Apply(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Team sync", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	slot := window(t, monday, 9, 10)
	relocated := window(t, monday, 10, 11)
	proposal := buildProposal(t, f, blocker, slot, relocated)

	engine := services.NewExecutionEngine(f.store, nil)
	report, err := engine.Apply(context.Background(), proposal)

	require.NoError(t, err)
	assert.Equal(t, "Incident Review", report.Created.Title)
	assert.Equal(t, slot.Start, report.Created.Start)
	require.Len(t, report.Rescheduled, 1)

	events, err := f.store.Events(context.Background(), "bob", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Incident Review", events[0].Title)
	assert.Equal(t, "Team sync", events[1].Title)
	assert.Equal(t, relocated.Start, events[1].Start)
	assert.NotEqual(t, blocker.ID, events[1].ID)
	assert.Contains(t, events[1].Description, "Rescheduled from")
}

func TestExecutionEngine_Apply_RejectsMissingRelocation(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Team sync", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	slot := window(t, monday, 9, 10)
	proposal := buildProposal(t, f, blocker, slot, window(t, monday, 10, 11))
	proposal.Conflicts[0].Relocated = nil

	engine := services.NewExecutionEngine(f.store, nil)
	_, err := engine.Apply(context.Background(), proposal)

	require.Error(t, err)
	assert.Equal(t, domain.KindConflictInfeasible, domain.KindOf(err))
}

func TestExecutionEngine_Apply_CompensatesFailedRelocation(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Team sync", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	slot := window(t, monday, 9, 10)
	relocated := window(t, monday, 10, 11)
	proposal := buildProposal(t, f, blocker, slot, relocated)

	// Recreating the moved event fails after the delete succeeded.
	client := &failingClient{Store: f.store, failTitle: "Team sync"}
	engine := services.NewExecutionEngine(client, nil)

	_, err := engine.Apply(context.Background(), proposal)
	require.Error(t, err)

	// The deleted event is back, unchanged: moved or unmoved, never missing.
	events, err := f.store.Events(context.Background(), "bob", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, blocker.ID, events[0].ID, "compensation restores the original id")
	assert.Equal(t, blocker.Start, events[0].Start)

	// The requested meeting was never created.
	assert.NotContains(t, f.eventTitles(t, "alice"), "Incident Review")
}

func TestExecutionEngine_Apply_FailedMeetingCreateKeepsMoves(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Team sync", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	slot := window(t, monday, 9, 10)
	relocated := window(t, monday, 10, 11)
	proposal := buildProposal(t, f, blocker, slot, relocated)

	client := &failingClient{Store: f.store, failTitle: "Incident Review"}
	engine := services.NewExecutionEngine(client, nil)

	_, err := engine.Apply(context.Background(), proposal)
	require.Error(t, err)

	// The relocation committed; nothing is missing.
	events, err := f.store.Events(context.Background(), "bob", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Team sync", events[0].Title)
	assert.Equal(t, relocated.Start, events[0].Start)
}

func TestExecutionEngine_ForceSchedule_CaseVariantDuplicateAttendees(t *testing.T) {
	f := newCalendarFixture(t)

	// Hand-assembled request bypassing the constructor's dedup: the lock
	// keys for "Alice" and "alice" collapse to one acquisition.
	request := domain.MeetingRequest{
		Title:     "Incident Review",
		Duration:  time.Hour,
		Organizer: "Alice",
		Attendees: []string{"Alice", "alice", "BOB"},
		Priority:  4,
		Preferred: window(t, monday, 9, 17),
	}
	engine := services.NewExecutionEngine(f.store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.ForceSchedule(context.Background(), request, window(t, monday, 9, 10))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ForceSchedule did not return for case-variant duplicate attendees")
	}
}

func TestExecutionEngine_ForceSchedule_NeverMutatesExistingEvents(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Team sync", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	request := newRequest(t, "Incident Review", time.Hour, 4, window(t, monday, 9, 17), "alice", "bob")
	engine := services.NewExecutionEngine(f.store, nil)

	report, err := engine.ForceSchedule(context.Background(), request, window(t, monday, 9, 10))

	require.NoError(t, err)
	assert.Equal(t, "Incident Review", report.Created.Title)
	assert.Empty(t, report.Rescheduled)

	events, err := f.store.Events(context.Background(), "bob", monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 2, "double-booked, nothing moved")
	for _, event := range events {
		if event.Title == "Team sync" {
			assert.Equal(t, blocker.ID, event.ID)
			assert.Equal(t, blocker.Start, event.Start)
		}
	}
}
