package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

func TestSlotFinder_FindSlot_EmptyCalendars(t *testing.T) {
	f := newCalendarFixture(t)
	request := newRequest(t, "Kickoff", time.Hour, 3, window(t, monday, 9, 17), "alice", "bob")

	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	require.True(t, scan.Found)
	assert.Equal(t, at(t, monday, 9, 0), scan.Slot.Start)
	assert.Equal(t, at(t, monday, 10, 0), scan.Slot.End)
}

func TestSlotFinder_FindSlot_SkipsBusySlots(t *testing.T) {
	f := newCalendarFixture(t)
	f.addEvent(t, "Standup", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	request := newRequest(t, "Kickoff", time.Hour, 3, window(t, monday, 9, 17), "alice", "bob")
	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	require.True(t, scan.Found)
	assert.Equal(t, at(t, monday, 10, 0), scan.Slot.Start, "first slot after the busy hour")
}

func TestSlotFinder_FindSlot_ExhaustedScanReportsConflicts(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Workshop", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	request := newRequest(t, "Kickoff", time.Hour, 3, window(t, monday, 9, 10), "alice", "bob")
	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	assert.False(t, scan.Found)
	require.Equal(t, 1, scan.Conflicts.Len())

	conflict, ok := scan.Conflicts.Get(blocker.ID)
	require.True(t, ok)
	assert.Equal(t, "Workshop", conflict.Summary)
	assert.Equal(t, at(t, monday, 9, 0), conflict.Original.Start)

	require.Len(t, scan.Candidates, 1, "one candidate per distinct conflict combination")
	assert.Equal(t, at(t, monday, 9, 0), scan.Candidates[0].Slot.Start)
}

func TestSlotFinder_FindSlot_MergesSharedEventAcrossCalendars(t *testing.T) {
	f := newCalendarFixture(t)
	// One event on both calendars must surface as a single conflict.
	f.addEvent(t, "Joint review", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "alice", "bob")

	request := newRequest(t, "Kickoff", time.Hour, 3, window(t, monday, 9, 10), "alice", "bob")
	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	assert.False(t, scan.Found)
	assert.Equal(t, 1, scan.Conflicts.Len())
}

func TestSlotFinder_FindSlot_SkipsOutsideBusinessHours(t *testing.T) {
	f := newCalendarFixture(t)

	// Window starts before the business day; scan must begin at 09:00.
	preferred, err := domain.NewTimeRange(at(t, monday, 6, 0), at(t, monday, 17, 0))
	require.NoError(t, err)
	request := newRequest(t, "Kickoff", time.Hour, 3, preferred, "alice")

	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	require.True(t, scan.Found)
	assert.Equal(t, at(t, monday, 9, 0), scan.Slot.Start)
}

func TestSlotFinder_FindSlot_WeekendWindowIsInfeasible(t *testing.T) {
	f := newCalendarFixture(t)
	saturday := monday.AddDate(0, 0, 5)

	preferred, err := domain.NewTimeRange(at(t, saturday, 9, 0), at(t, saturday, 17, 0))
	require.NoError(t, err)
	request := newRequest(t, "Kickoff", time.Hour, 3, preferred, "alice")

	scan, err := f.finder.FindSlot(context.Background(), request)

	require.NoError(t, err)
	assert.False(t, scan.Found)
	assert.Equal(t, 0, scan.Conflicts.Len(), "no conflicts, just no business hours")
}

func TestSlotFinder_FindRelocation(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Standup", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")

	conflict := domain.Conflict{
		EventID:   blocker.ID,
		Summary:   blocker.Title,
		Original:  domain.TimeRange{Start: blocker.Start, End: blocker.End},
		Attendees: blocker.Attendees,
		Priority:  blocker.Priority,
	}
	reserved := window(t, monday, 9, 10)

	slot, found, err := f.finder.FindRelocation(context.Background(), conflict, reserved, nil)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, at(t, monday, 10, 0), slot.Start, "event does not conflict with itself; first slot clear of the reservation")
	assert.Equal(t, time.Hour, slot.Duration(), "relocation preserves duration")
}

func TestSlotFinder_FindRelocation_AvoidsOtherEvents(t *testing.T) {
	f := newCalendarFixture(t)
	blocker := f.addEvent(t, "Standup", at(t, monday, 9, 0), at(t, monday, 10, 0), 2, "bob")
	f.addEvent(t, "Interview", at(t, monday, 10, 0), at(t, monday, 11, 0), 3, "bob")

	conflict := domain.Conflict{
		EventID:   blocker.ID,
		Summary:   blocker.Title,
		Original:  domain.TimeRange{Start: blocker.Start, End: blocker.End},
		Attendees: blocker.Attendees,
		Priority:  blocker.Priority,
	}
	reserved := window(t, monday, 9, 10)

	slot, found, err := f.finder.FindRelocation(context.Background(), conflict, reserved, nil)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, at(t, monday, 11, 0), slot.Start)
}
