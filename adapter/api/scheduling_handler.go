package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// SchedulingHandler handles scheduling API requests.
type SchedulingHandler struct {
	coordinator *services.Coordinator
	directory   calendarApp.Directory
	calendar    calendarApp.Client
	logger      *slog.Logger
}

// SchedulingHandlerConfig holds dependencies for the scheduling handler.
type SchedulingHandlerConfig struct {
	Coordinator *services.Coordinator
	Directory   calendarApp.Directory
	Calendar    calendarApp.Client
	Logger      *slog.Logger
}

// NewSchedulingHandler creates a new scheduling handler.
func NewSchedulingHandler(cfg SchedulingHandlerConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SchedulingHandler{
		coordinator: cfg.Coordinator,
		directory:   cfg.Directory,
		calendar:    cfg.Calendar,
		logger:      cfg.Logger,
	}
}

type scheduleRequestBody struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	DurationMinutes int      `json:"duration_minutes"`
	WindowStart     string   `json:"window_start"`
	WindowEnd       string   `json:"window_end"`
	Attendees       []string `json:"attendees"`
	Recurring       bool     `json:"recurring,omitempty"`
	Priority        int      `json:"priority,omitempty"`
}

type scheduleResponse struct {
	Outcome string       `json:"outcome"`
	Event   *eventDTO    `json:"event,omitempty"`
	Session *sessionView `json:"session,omitempty"`
}

type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Organizer   string    `json:"organizer"`
	Attendees   []string  `json:"attendees"`
	Priority    int       `json:"priority"`
	Description string    `json:"description,omitempty"`
	Recurring   bool      `json:"recurring,omitempty"`
}

type rangeView struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type conflictView struct {
	EventID   string     `json:"event_id"`
	Summary   string     `json:"summary"`
	Original  rangeView  `json:"original"`
	Relocated *rangeView `json:"relocated,omitempty"`
	Attendees []string   `json:"attendees"`
	Priority  int        `json:"priority"`
}

type proposalView struct {
	ID                uuid.UUID      `json:"id"`
	Slot              rangeView      `json:"slot"`
	Conflicts         []conflictView `json:"conflicts"`
	AffectedAttendees []string       `json:"affected_attendees"`
	ImpactScore       float64        `json:"impact_score"`
}

type sessionView struct {
	ID        uuid.UUID      `json:"id"`
	Status    string         `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
	Proposals []proposalView `json:"proposals"`
	Notes     []string       `json:"notes,omitempty"`
}

// Schedule handles POST /api/v1/agents/{agent}/meetings
func (h *SchedulingHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	organizer := r.PathValue("agent")
	if organizer == "" {
		writeError(w, http.StatusBadRequest, "Agent ID is required")
		return
	}

	var body scheduleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	windowStart, err := parseTimeParam(body.WindowStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "window_start must be RFC3339")
		return
	}
	windowEnd, err := parseTimeParam(body.WindowEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "window_end must be RFC3339")
		return
	}

	result, err := h.coordinator.Schedule(r.Context(), services.ScheduleRequest{
		Organizer:   organizer,
		Title:       body.Title,
		Description: body.Description,
		Duration:    time.Duration(body.DurationMinutes) * time.Minute,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Attendees:   body.Attendees,
		Recurring:   body.Recurring,
		Priority:    body.Priority,
	})
	if err != nil {
		h.logger.Error("schedule request failed", "organizer", organizer, "error", err)
		writeDomainError(w, err)
		return
	}

	response := scheduleResponse{Outcome: string(result.Outcome)}
	if result.Event != nil {
		event := toEventDTO(*result.Event)
		response.Event = &event
	}
	if result.Session != nil {
		response.Session = toSessionView(result.Session)
	}

	status := http.StatusCreated
	if result.Outcome == services.OutcomeNeedsNegotiation {
		status = http.StatusAccepted
	}
	writeJSON(w, status, response)
}

type negotiateRequestBody struct {
	SessionID  uuid.UUID `json:"session_id"`
	Action     string    `json:"action"`
	ProposalID uuid.UUID `json:"proposal_id,omitempty"`
}

type rescheduledView struct {
	EventID    string    `json:"event_id"`
	NewEventID string    `json:"new_event_id"`
	Title      string    `json:"title"`
	From       rangeView `json:"from"`
	To         rangeView `json:"to"`
}

type negotiateResponse struct {
	Status      string            `json:"status"`
	Event       *eventDTO         `json:"event,omitempty"`
	Rescheduled []rescheduledView `json:"rescheduled,omitempty"`
}

// Negotiate handles POST /api/v1/agents/{agent}/negotiate
func (h *SchedulingHandler) Negotiate(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	if agent == "" {
		writeError(w, http.StatusBadRequest, "Agent ID is required")
		return
	}

	var body negotiateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.SessionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	action := services.NegotiateAction(body.Action)
	switch action {
	case services.ActionAccept, services.ActionForce, services.ActionReject:
	default:
		writeError(w, http.StatusBadRequest, "action must be accept, force, or reject")
		return
	}

	result, err := h.coordinator.Negotiate(r.Context(), services.NegotiateRequest{
		SessionID:  body.SessionID,
		Action:     action,
		ProposalID: body.ProposalID,
	})
	if err != nil {
		h.logger.Error("negotiate request failed",
			"session_id", body.SessionID, "action", body.Action, "error", err)
		writeDomainError(w, err)
		return
	}

	response := negotiateResponse{Status: string(result.Status)}
	if result.Event != nil {
		event := toEventDTO(*result.Event)
		response.Event = &event
	}
	for _, moved := range result.Rescheduled {
		response.Rescheduled = append(response.Rescheduled, rescheduledView{
			EventID:    moved.EventID,
			NewEventID: moved.NewEventID,
			Title:      moved.Title,
			From:       toRangeView(moved.From),
			To:         toRangeView(moved.To),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

type availabilityResponse struct {
	Agent string      `json:"agent"`
	Free  []rangeView `json:"free"`
	Busy  []rangeView `json:"busy"`
}

// Availability handles GET /api/v1/agents/{agent}/availability
func (h *SchedulingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	if agent == "" {
		writeError(w, http.StatusBadRequest, "Agent ID is required")
		return
	}

	start, err := parseTimeParam(r.URL.Query().Get("start_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end_time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339")
		return
	}
	window, err := domain.NewTimeRange(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must precede end_time")
		return
	}

	free, busy, err := h.coordinator.Availability(r.Context(), agent, window)
	if err != nil {
		h.logger.Error("availability request failed", "agent", agent, "error", err)
		writeDomainError(w, err)
		return
	}

	response := availabilityResponse{
		Agent: agent,
		Free:  toRangeViews(free),
		Busy:  toRangeViews(busy),
	}
	writeJSON(w, http.StatusOK, response)
}

type priorityRequestBody struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	AttendeeCount int    `json:"attendee_count"`
	Recurring     bool   `json:"recurring,omitempty"`
	Explicit      int    `json:"explicit,omitempty"`
}

// EvaluatePriority handles POST /api/v1/agents/{agent}/priority
func (h *SchedulingHandler) EvaluatePriority(w http.ResponseWriter, r *http.Request) {
	var body priorityRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	priority := h.coordinator.EvaluatePriority(services.PriorityInput{
		Title:         body.Title,
		Description:   body.Description,
		AttendeeCount: body.AttendeeCount,
		Recurring:     body.Recurring,
		Explicit:      body.Explicit,
	})
	writeJSON(w, http.StatusOK, map[string]int{"priority": priority})
}

// DeleteEvent handles DELETE /api/v1/agents/{agent}/events/{eventID}
func (h *SchedulingHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "Event ID is required")
		return
	}

	if err := h.calendar.Delete(r.Context(), eventID); err != nil {
		if errors.Is(err, calendarApp.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return
		}
		h.logger.Error("event delete failed", "event_id", eventID, "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type agentView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

type registerAgentBody struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ListAgents handles GET /api/v1/agents
func (h *SchedulingHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.Error("agent list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list agents")
		return
	}

	views := make([]agentView, 0, len(agents))
	for _, agent := range agents {
		views = append(views, agentView{
			ID:           agent.ID,
			Name:         agent.Name,
			RegisteredAt: agent.RegisteredAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": views})
}

// RegisterAgent handles POST /api/v1/agents
func (h *SchedulingHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var body registerAgentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	agent, err := calendarApp.NewAgent(body.ID, body.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.directory.Register(r.Context(), agent); err != nil {
		h.logger.Error("agent register failed", "agent", body.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to register agent")
		return
	}

	writeJSON(w, http.StatusCreated, agentView{
		ID:           agent.ID,
		Name:         agent.Name,
		RegisteredAt: agent.RegisteredAt,
	})
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func toEventDTO(event calendarApp.Event) eventDTO {
	return eventDTO{
		ID:          event.ID,
		Title:       event.Title,
		StartTime:   event.Start,
		EndTime:     event.End,
		Organizer:   event.Organizer,
		Attendees:   event.Attendees,
		Priority:    event.Priority,
		Description: event.Description,
		Recurring:   event.Recurring,
	}
}

func toSessionView(summary *services.SessionSummary) *sessionView {
	view := &sessionView{
		ID:        summary.ID,
		Status:    string(summary.Status),
		ExpiresAt: summary.ExpiresAt,
		Proposals: make([]proposalView, 0, len(summary.Proposals)),
		Notes:     summary.Notes,
	}
	for _, proposal := range summary.Proposals {
		p := proposalView{
			ID:                proposal.ID,
			Slot:              toRangeView(proposal.Slot),
			Conflicts:         make([]conflictView, 0, len(proposal.Conflicts)),
			AffectedAttendees: proposal.AffectedAttendees,
			ImpactScore:       proposal.ImpactScore,
		}
		for _, conflict := range proposal.Conflicts {
			c := conflictView{
				EventID:   conflict.EventID,
				Summary:   conflict.Summary,
				Original:  toRangeView(conflict.Original),
				Attendees: conflict.Attendees,
				Priority:  conflict.Priority,
			}
			if conflict.Relocated != nil {
				relocated := toRangeView(*conflict.Relocated)
				c.Relocated = &relocated
			}
			p.Conflicts = append(p.Conflicts, c)
		}
		view.Proposals = append(view.Proposals, p)
	}
	return view
}

func toRangeView(r domain.TimeRange) rangeView {
	return rangeView{Start: r.Start, End: r.End}
}

func toRangeViews(ranges []domain.TimeRange) []rangeView {
	views := make([]rangeView, 0, len(ranges))
	for _, r := range ranges {
		views = append(views, toRangeView(r))
	}
	return views
}
