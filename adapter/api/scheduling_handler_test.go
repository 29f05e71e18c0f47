package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/calendar/infrastructure/memory"
	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
	"github.com/felixgeelhaar/accord/internal/scheduling/infrastructure/sessionstore"
	"github.com/felixgeelhaar/accord/internal/shared/infrastructure/eventbus"
)

// monday is a Monday inside default business hours.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourOn(h int) time.Time {
	return monday.Add(time.Duration(h) * time.Hour)
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	hours := domain.DefaultBusinessHours()
	resolver := services.NewAvailabilityResolver(store, hours, nil)
	finder := services.NewSlotFinder(resolver, hours, services.DefaultSlotFinderConfig(), nil)
	coordinator := services.NewCoordinator(
		services.NewPriorityEvaluator(services.DefaultEvaluatorConfig()),
		resolver, finder,
		services.NewNegotiationEngine(finder, services.DefaultNegotiationConfig(), nil),
		services.NewExecutionEngine(store, nil),
		sessionstore.NewMemoryStore(nil),
		eventbus.NewNoopPublisher(nil),
		hours,
		services.DefaultCoordinatorConfig(),
		nil,
	)

	handler := NewSchedulingHandler(SchedulingHandlerConfig{
		Coordinator: coordinator,
		Directory:   store,
		Calendar:    store,
	})
	return NewServer(DefaultServerConfig(), handler, nil), store
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	return rec
}

func scheduleBody(fromHour, toHour int) map[string]any {
	return map[string]any{
		"title":            "Incident Review",
		"duration_minutes": 60,
		"window_start":     hourOn(fromHour).Format(time.RFC3339),
		"window_end":       hourOn(toHour).Format(time.RFC3339),
		"attendees":        []string{"bob"},
		"priority":         4,
	}
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSchedulingHandler_Schedule_FreeWindow(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/meetings", scheduleBody(9, 17))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "scheduled", response.Outcome)
	require.NotNil(t, response.Event)
	assert.Equal(t, "Incident Review", response.Event.Title)
	assert.Equal(t, "alice", response.Event.Organizer)
	assert.Nil(t, response.Session)
}

func TestSchedulingHandler_Schedule_ConflictReturnsSession(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Create(context.Background(), calendarApp.Event{
		ID:        "evt-1",
		Title:     "Team sync",
		Start:     hourOn(9),
		End:       hourOn(10),
		Organizer: "bob",
		Attendees: []string{"bob"},
		Priority:  2,
	}))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/meetings", scheduleBody(9, 10))

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var response scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "needs_negotiation", response.Outcome)
	assert.Nil(t, response.Event)
	require.NotNil(t, response.Session)
	assert.Equal(t, "pending", response.Session.Status)
	require.Len(t, response.Session.Proposals, 1)
	require.Len(t, response.Session.Proposals[0].Conflicts, 1)
	assert.NotNil(t, response.Session.Proposals[0].Conflicts[0].Relocated)
}

func TestSchedulingHandler_Schedule_BadRequests(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing window start", func(b map[string]any) { b["window_start"] = "" }},
		{"malformed window end", func(b map[string]any) { b["window_end"] = "tomorrow" }},
		{"inverted window", func(b map[string]any) {
			b["window_start"], b["window_end"] = b["window_end"], b["window_start"]
		}},
		{"empty title", func(b map[string]any) { b["title"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := scheduleBody(9, 17)
			tt.mutate(body)
			rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/meetings", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSchedulingHandler_NegotiateAccept(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Create(context.Background(), calendarApp.Event{
		ID:        "evt-1",
		Title:     "Team sync",
		Start:     hourOn(9),
		End:       hourOn(10),
		Organizer: "bob",
		Attendees: []string{"bob"},
		Priority:  2,
	}))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/meetings", scheduleBody(9, 10))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var opened scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))

	rec = doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/negotiate", map[string]any{
		"session_id": opened.Session.ID,
		"action":     "accept",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved negotiateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, "accepted", resolved.Status)
	require.NotNil(t, resolved.Event)
	require.Len(t, resolved.Rescheduled, 1)
	assert.Equal(t, "evt-1", resolved.Rescheduled[0].EventID)

	// A second accept hits the terminal session.
	rec = doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/negotiate", map[string]any{
		"session_id": opened.Session.ID,
		"action":     "accept",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestSchedulingHandler_Negotiate_Validation(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("unknown action", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/negotiate", map[string]any{
			"session_id": uuid.New(),
			"action":     "maybe",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing session id", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/negotiate", map[string]any{
			"action": "accept",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/negotiate", map[string]any{
			"session_id": uuid.New(),
			"action":     "accept",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSchedulingHandler_Availability(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Create(context.Background(), calendarApp.Event{
		ID:        "evt-1",
		Title:     "Standup",
		Start:     hourOn(9),
		End:       hourOn(10),
		Organizer: "bob",
		Attendees: []string{"bob"},
		Priority:  2,
	}))

	path := fmt.Sprintf("/api/v1/agents/bob/availability?start_time=%s&end_time=%s",
		hourOn(9).Format(time.RFC3339), hourOn(17).Format(time.RFC3339))
	rec := doJSON(t, server, http.MethodGet, path, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "bob", response.Agent)
	require.Len(t, response.Busy, 1)
	require.Len(t, response.Free, 1)
	assert.True(t, response.Free[0].Start.Equal(hourOn(10)))
}

func TestSchedulingHandler_Availability_BadRange(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/agents/bob/availability?start_time=now", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchedulingHandler_EvaluatePriority(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/agents/alice/priority", map[string]any{
		"title":          "URGENT: incident",
		"attendee_count": 5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var response map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 5, response["priority"])
}

func TestSchedulingHandler_Agents(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/agents", map[string]any{
		"id":   "alice",
		"name": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/agents", map[string]any{"id": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Agents []agentView `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Agents, 1)
	assert.Equal(t, "Alice", response.Agents[0].Name)
}

func TestSchedulingHandler_DeleteEvent(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.Create(context.Background(), calendarApp.Event{
		ID:        "evt-1",
		Title:     "Standup",
		Start:     hourOn(9),
		End:       hourOn(10),
		Organizer: "bob",
		Attendees: []string{"bob"},
		Priority:  2,
	}))

	rec := doJSON(t, server, http.MethodDelete, "/api/v1/agents/bob/events/evt-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, server, http.MethodDelete, "/api/v1/agents/bob/events/evt-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
