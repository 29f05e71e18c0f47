package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
	sharedDomain "github.com/felixgeelhaar/accord/internal/shared/domain"
	"github.com/felixgeelhaar/accord/internal/shared/infrastructure/eventbus"
)

// Outcome tags a schedule result.
type Outcome string

const (
	// OutcomeScheduled means the meeting was placed directly in a free slot.
	OutcomeScheduled Outcome = "scheduled"
	// OutcomeNeedsNegotiation means conflicts require an accept/force/reject
	// decision; a session is open.
	OutcomeNeedsNegotiation Outcome = "needs_negotiation"
	// OutcomeFailed is used by adapters when the operation errored.
	OutcomeFailed Outcome = "failed"
)

// ScheduleRequest is the transport-agnostic input to Schedule.
type ScheduleRequest struct {
	Organizer   string
	Title       string
	Description string
	Duration    time.Duration
	WindowStart time.Time
	WindowEnd   time.Time
	Attendees   []string
	Recurring   bool

	// Priority, when non-zero, is taken as-is; zero asks the evaluator.
	Priority int
}

// SessionSummary is the caller-facing view of an open negotiation.
type SessionSummary struct {
	ID        uuid.UUID
	Status    domain.SessionStatus
	ExpiresAt time.Time
	Proposals []domain.Proposal
	Notes     []string
}

// ScheduleResult is the tagged outcome of a schedule call.
type ScheduleResult struct {
	Outcome Outcome
	Event   *calendarApp.Event
	Session *SessionSummary
}

// NegotiateAction resolves an open session.
type NegotiateAction string

const (
	ActionAccept NegotiateAction = "accept"
	ActionForce  NegotiateAction = "force"
	ActionReject NegotiateAction = "reject"
)

// NegotiateRequest drives the session state machine.
type NegotiateRequest struct {
	SessionID uuid.UUID
	Action    NegotiateAction

	// ProposalID selects a specific proposal on accept; zero picks the
	// lowest-impact one.
	ProposalID uuid.UUID
}

// NegotiateResult reports a resolved session.
type NegotiateResult struct {
	Status      domain.SessionStatus
	Event       *calendarApp.Event
	Rescheduled []RescheduledEvent
}

// CoordinatorConfig tunes the orchestration layer.
type CoordinatorConfig struct {
	// SessionTTL is how long an open negotiation stays answerable.
	SessionTTL time.Duration
}

// DefaultCoordinatorConfig returns the standard settings.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{SessionTTL: time.Hour}
}

// Coordinator wires the scheduling pipeline end to end: priority evaluation,
// slot search, proposal generation, the session state machine, and execution.
type Coordinator struct {
	evaluator  *PriorityEvaluator
	slots      *SlotFinder
	resolver   *AvailabilityResolver
	negotiator *NegotiationEngine
	executor   *ExecutionEngine
	sessions   domain.SessionStore
	publisher  eventbus.Publisher
	hours      domain.BusinessHours
	config     CoordinatorConfig
	logger     *slog.Logger
}

// NewCoordinator creates the orchestration service.
func NewCoordinator(
	evaluator *PriorityEvaluator,
	resolver *AvailabilityResolver,
	slots *SlotFinder,
	negotiator *NegotiationEngine,
	executor *ExecutionEngine,
	sessions domain.SessionStore,
	publisher eventbus.Publisher,
	hours domain.BusinessHours,
	config CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		evaluator:  evaluator,
		resolver:   resolver,
		slots:      slots,
		negotiator: negotiator,
		executor:   executor,
		sessions:   sessions,
		publisher:  publisher,
		hours:      hours,
		config:     config,
		logger:     logger,
	}
}

// Schedule places a meeting in the preferred window, or opens a negotiation
// session when every candidate slot is conflicted.
func (c *Coordinator) Schedule(ctx context.Context, req ScheduleRequest) (ScheduleResult, error) {
	request, err := c.buildRequest(req)
	if err != nil {
		return ScheduleResult{}, err
	}

	scan, err := c.slots.FindSlot(ctx, request)
	if err != nil {
		return ScheduleResult{}, err
	}

	if scan.Found {
		report, err := c.executor.Schedule(ctx, request, scan.Slot)
		if err != nil {
			return ScheduleResult{}, err
		}
		c.publish(ctx, domain.NewMeetingScheduled(request, scan.Slot, false))
		c.logger.Info("meeting scheduled",
			"title", request.Title,
			"organizer", request.Organizer,
			"slot", scan.Slot.String(),
		)
		return ScheduleResult{Outcome: OutcomeScheduled, Event: &report.Created}, nil
	}

	if scan.Conflicts.Len() == 0 {
		return ScheduleResult{}, domain.NewConflictInfeasibleError(
			"preferred window contains no schedulable slot")
	}

	proposals, notes, err := c.negotiator.Propose(ctx, request, scan.Candidates)
	if err != nil {
		return ScheduleResult{}, err
	}

	session := domain.NewNegotiationSession(request, proposals, notes, c.config.SessionTTL)
	if err := c.sessions.Put(ctx, session); err != nil {
		return ScheduleResult{}, err
	}
	c.publishSessionEvents(ctx, session)

	c.logger.Info("negotiation opened",
		"session_id", session.ID(),
		"title", request.Title,
		"proposals", len(proposals),
	)
	return ScheduleResult{
		Outcome: OutcomeNeedsNegotiation,
		Session: c.summarize(session),
	}, nil
}

// Negotiate resolves an open session.
func (c *Coordinator) Negotiate(ctx context.Context, req NegotiateRequest) (NegotiateResult, error) {
	switch req.Action {
	case ActionAccept:
		return c.accept(ctx, req)
	case ActionForce:
		return c.force(ctx, req)
	case ActionReject:
		return c.reject(ctx, req)
	default:
		return NegotiateResult{}, domain.NewValidationError("unknown negotiate action %q", req.Action)
	}
}

// Availability returns the participant's free and busy business-hours time.
func (c *Coordinator) Availability(ctx context.Context, participant string, window domain.TimeRange) (free, busy []domain.TimeRange, err error) {
	return c.resolver.FreeWindows(ctx, participant, window)
}

// EvaluatePriority exposes the evaluator for the priority endpoint.
func (c *Coordinator) EvaluatePriority(input PriorityInput) int {
	return c.evaluator.Evaluate(input)
}

func (c *Coordinator) accept(ctx context.Context, req NegotiateRequest) (NegotiateResult, error) {
	now := time.Now()
	var chosen domain.Proposal

	session, err := c.sessions.Update(ctx, req.SessionID, func(s *domain.NegotiationSession) error {
		if err := s.EnsurePending(now); err != nil {
			return err
		}
		if req.ProposalID != uuid.Nil {
			proposal, ok := s.FindProposal(req.ProposalID)
			if !ok {
				return domain.NewNotFoundError("proposal %s not in session %s", req.ProposalID, s.ID())
			}
			chosen = proposal
		} else {
			proposal, ok := s.PreferredProposal()
			if !ok {
				return domain.NewConflictInfeasibleError("session has no proposals; force or reject")
			}
			chosen = proposal
		}
		return s.Accept(now)
	})
	if err != nil {
		c.publishSessionEvents(ctx, session)
		return NegotiateResult{}, err
	}

	report, err := c.executor.Apply(ctx, chosen)
	if err != nil {
		c.reopen(ctx, req.SessionID)
		return NegotiateResult{}, err
	}

	c.publishSessionEvents(ctx, session)
	c.publish(ctx, domain.NewMeetingScheduled(session.Request(), chosen.Slot, false))
	c.logger.Info("proposal accepted",
		"session_id", session.ID(),
		"proposal_id", chosen.ID,
		"moved", len(report.Rescheduled),
	)
	return NegotiateResult{
		Status:      session.Status(),
		Event:       &report.Created,
		Rescheduled: report.Rescheduled,
	}, nil
}

func (c *Coordinator) force(ctx context.Context, req NegotiateRequest) (NegotiateResult, error) {
	now := time.Now()
	session, err := c.sessions.Update(ctx, req.SessionID, func(s *domain.NegotiationSession) error {
		return s.Force(now)
	})
	if err != nil {
		c.publishSessionEvents(ctx, session)
		return NegotiateResult{}, err
	}

	request := session.Request()
	slot, err := c.forceSlot(request)
	if err != nil {
		c.reopen(ctx, req.SessionID)
		return NegotiateResult{}, err
	}

	report, err := c.executor.ForceSchedule(ctx, request, slot)
	if err != nil {
		c.reopen(ctx, req.SessionID)
		return NegotiateResult{}, err
	}

	c.publishSessionEvents(ctx, session)
	c.publish(ctx, domain.NewMeetingScheduled(request, slot, true))
	c.logger.Info("meeting forced",
		"session_id", session.ID(),
		"slot", slot.String(),
	)
	return NegotiateResult{Status: session.Status(), Event: &report.Created}, nil
}

func (c *Coordinator) reject(ctx context.Context, req NegotiateRequest) (NegotiateResult, error) {
	now := time.Now()
	session, err := c.sessions.Update(ctx, req.SessionID, func(s *domain.NegotiationSession) error {
		return s.Reject(now)
	})
	if err != nil {
		c.publishSessionEvents(ctx, session)
		return NegotiateResult{}, err
	}

	c.publishSessionEvents(ctx, session)
	c.logger.Info("negotiation rejected", "session_id", session.ID())
	return NegotiateResult{Status: session.Status()}, nil
}

func (c *Coordinator) buildRequest(req ScheduleRequest) (domain.MeetingRequest, error) {
	window, err := domain.NewTimeRange(req.WindowStart, req.WindowEnd)
	if err != nil {
		return domain.MeetingRequest{}, domain.NewValidationError("invalid preferred window: %v", err)
	}
	if req.Duration > c.hours.DayLength() {
		return domain.MeetingRequest{}, domain.NewValidationError(
			"duration %s exceeds the business day", req.Duration)
	}

	priority := req.Priority
	if priority == 0 {
		priority = c.evaluator.Evaluate(PriorityInput{
			Title:         req.Title,
			Description:   req.Description,
			AttendeeCount: uniqueAttendeeCount(req.Organizer, req.Attendees),
			Recurring:     req.Recurring,
		})
	}

	request, err := domain.NewMeetingRequest(
		req.Title, req.Duration, req.Organizer, req.Attendees,
		priority, req.Description, window,
	)
	if err != nil {
		return domain.MeetingRequest{}, err
	}
	request.Recurring = req.Recurring
	return request, nil
}

// forceSlot is the earliest business-hours slot in the preferred window,
// conflicts ignored: forcing means claiming the originally requested time.
func (c *Coordinator) forceSlot(request domain.MeetingRequest) (domain.TimeRange, error) {
	start := c.hours.NextOpen(request.Preferred.Start)
	slot := domain.TimeRange{Start: start, End: start.Add(request.Duration)}
	if slot.End.After(request.Preferred.End) || !c.hours.ContainsRange(slot) {
		return domain.TimeRange{}, domain.NewConflictInfeasibleError(
			"preferred window contains no schedulable slot to force")
	}
	return slot, nil
}

func (c *Coordinator) reopen(ctx context.Context, id uuid.UUID) {
	if _, err := c.sessions.Update(ctx, id, func(s *domain.NegotiationSession) error {
		s.Reopen()
		return nil
	}); err != nil {
		c.logger.Error("failed to reopen session after execution failure",
			"session_id", id,
			"error", err,
		)
	}
}

func (c *Coordinator) summarize(session *domain.NegotiationSession) *SessionSummary {
	return &SessionSummary{
		ID:        session.ID(),
		Status:    session.Status(),
		ExpiresAt: session.ExpiresAt(),
		Proposals: session.Proposals(),
		Notes:     session.Notes(),
	}
}

func (c *Coordinator) publishSessionEvents(ctx context.Context, session *domain.NegotiationSession) {
	if session == nil {
		return
	}
	eventbus.PublishDomainEvents(ctx, c.publisher, session.DomainEvents(), c.logger)
	session.ClearDomainEvents()
}

func (c *Coordinator) publish(ctx context.Context, event sharedDomain.DomainEvent) {
	eventbus.PublishDomainEvents(ctx, c.publisher, []sharedDomain.DomainEvent{event}, c.logger)
}

func uniqueAttendeeCount(organizer string, attendees []string) int {
	set := map[string]bool{strings.ToLower(strings.TrimSpace(organizer)): true}
	for _, attendee := range attendees {
		set[strings.ToLower(strings.TrimSpace(attendee))] = true
	}
	return len(set)
}
