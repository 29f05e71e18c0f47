package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/memory"
	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// monday is a Monday, so default business hours apply all day.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(t *testing.T, day time.Time, hour, minute int) time.Time {
	t.Helper()
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func window(t *testing.T, day time.Time, fromHour, toHour int) domain.TimeRange {
	t.Helper()
	r, err := domain.NewTimeRange(at(t, day, fromHour, 0), at(t, day, toHour, 0))
	require.NoError(t, err)
	return r
}

// calendarFixture bundles the in-memory backend with the scan services built
// over it.
type calendarFixture struct {
	store    *memory.Store
	resolver *services.AvailabilityResolver
	finder   *services.SlotFinder
}

func newCalendarFixture(t *testing.T) *calendarFixture {
	t.Helper()
	store := memory.NewStore()
	hours := domain.DefaultBusinessHours()
	resolver := services.NewAvailabilityResolver(store, hours, nil)
	finder := services.NewSlotFinder(resolver, hours, services.DefaultSlotFinderConfig(), nil)
	return &calendarFixture{store: store, resolver: resolver, finder: finder}
}

func (f *calendarFixture) addEvent(t *testing.T, title string, start, end time.Time, priority int, attendees ...string) calendarApp.Event {
	t.Helper()
	event := calendarApp.Event{
		ID:        uuid.NewString(),
		Title:     title,
		Start:     start,
		End:       end,
		Organizer: attendees[0],
		Attendees: attendees,
		Priority:  priority,
	}
	require.NoError(t, f.store.Create(context.Background(), event))
	return event
}

func (f *calendarFixture) eventTitles(t *testing.T, participant string) []string {
	t.Helper()
	events, err := f.store.Events(context.Background(), participant, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	return titles
}

func newRequest(t *testing.T, title string, duration time.Duration, priority int, preferred domain.TimeRange, attendees ...string) domain.MeetingRequest {
	t.Helper()
	request, err := domain.NewMeetingRequest(
		title, duration, attendees[0], attendees[1:], priority, "", preferred)
	require.NoError(t, err)
	return request
}
