package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/accord/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	// AggregateTypeNegotiationSession is the aggregate type for negotiation sessions.
	AggregateTypeNegotiationSession = "negotiation_session"

	// Event routing keys
	RoutingKeyNegotiationOpened = "negotiation.opened"
	RoutingKeyProposalAccepted  = "negotiation.accepted"
	RoutingKeyMeetingForced     = "negotiation.forced"
	RoutingKeySessionRejected   = "negotiation.rejected"
	RoutingKeySessionExpired    = "negotiation.expired"
	RoutingKeyMeetingScheduled  = "scheduling.scheduled"
)

// NegotiationOpened is published when a conflicted request opens a session.
type NegotiationOpened struct {
	sharedDomain.BaseEvent
	Organizer     string    `json:"organizer"`
	Title         string    `json:"title"`
	ProposalCount int       `json:"proposal_count"`
	ExpiresAt     string    `json:"expires_at"`
	ProposalIDs   []string  `json:"proposal_ids"`
	SessionID     uuid.UUID `json:"session_id"`
}

// NewNegotiationOpened creates a negotiation opened event.
func NewNegotiationOpened(s *NegotiationSession) NegotiationOpened {
	ids := make([]string, 0, len(s.proposals))
	for _, p := range s.proposals {
		ids = append(ids, p.ID.String())
	}
	return NegotiationOpened{
		BaseEvent:     sharedDomain.NewBaseEvent(s.ID(), AggregateTypeNegotiationSession, RoutingKeyNegotiationOpened),
		Organizer:     s.organizer,
		Title:         s.request.Title,
		ProposalCount: len(s.proposals),
		ExpiresAt:     s.expiresAt.Format(time.RFC3339),
		ProposalIDs:   ids,
		SessionID:     s.ID(),
	}
}

// ProposalAccepted is published when a proposal is accepted for execution.
type ProposalAccepted struct {
	sharedDomain.BaseEvent
	Organizer string    `json:"organizer"`
	Title     string    `json:"title"`
	SessionID uuid.UUID `json:"session_id"`
}

// NewProposalAccepted creates a proposal accepted event.
func NewProposalAccepted(s *NegotiationSession) ProposalAccepted {
	return ProposalAccepted{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), AggregateTypeNegotiationSession, RoutingKeyProposalAccepted),
		Organizer: s.organizer,
		Title:     s.request.Title,
		SessionID: s.ID(),
	}
}

// MeetingForced is published when a request is scheduled over its conflicts.
type MeetingForced struct {
	sharedDomain.BaseEvent
	Organizer string    `json:"organizer"`
	Title     string    `json:"title"`
	SessionID uuid.UUID `json:"session_id"`
}

// NewMeetingForced creates a meeting forced event.
func NewMeetingForced(s *NegotiationSession) MeetingForced {
	return MeetingForced{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), AggregateTypeNegotiationSession, RoutingKeyMeetingForced),
		Organizer: s.organizer,
		Title:     s.request.Title,
		SessionID: s.ID(),
	}
}

// NegotiationRejected is published when the caller declines all proposals.
type NegotiationRejected struct {
	sharedDomain.BaseEvent
	Organizer string    `json:"organizer"`
	Title     string    `json:"title"`
	SessionID uuid.UUID `json:"session_id"`
}

// NewNegotiationRejected creates a negotiation rejected event.
func NewNegotiationRejected(s *NegotiationSession) NegotiationRejected {
	return NegotiationRejected{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), AggregateTypeNegotiationSession, RoutingKeySessionRejected),
		Organizer: s.organizer,
		Title:     s.request.Title,
		SessionID: s.ID(),
	}
}

// NegotiationExpired is published when a session passes its deadline unresolved.
type NegotiationExpired struct {
	sharedDomain.BaseEvent
	Organizer string    `json:"organizer"`
	Title     string    `json:"title"`
	SessionID uuid.UUID `json:"session_id"`
}

// NewNegotiationExpired creates a negotiation expired event.
func NewNegotiationExpired(s *NegotiationSession) NegotiationExpired {
	return NegotiationExpired{
		BaseEvent: sharedDomain.NewBaseEvent(s.ID(), AggregateTypeNegotiationSession, RoutingKeySessionExpired),
		Organizer: s.organizer,
		Title:     s.request.Title,
		SessionID: s.ID(),
	}
}

// MeetingScheduled is published when a meeting lands on the calendars,
// whether directly, by acceptance, or by force.
type MeetingScheduled struct {
	sharedDomain.BaseEvent
	Organizer string   `json:"organizer"`
	Title     string   `json:"title"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees"`
	Forced    bool     `json:"forced"`
}

// NewMeetingScheduled creates a meeting scheduled event. The aggregate id is
// freshly minted because direct placements never open a session.
func NewMeetingScheduled(request MeetingRequest, slot TimeRange, forced bool) MeetingScheduled {
	return MeetingScheduled{
		BaseEvent: sharedDomain.NewBaseEvent(uuid.New(), AggregateTypeNegotiationSession, RoutingKeyMeetingScheduled),
		Organizer: request.Organizer,
		Title:     request.Title,
		Start:     slot.Start.Format(time.RFC3339),
		End:       slot.End.Format(time.RFC3339),
		Attendees: request.Attendees,
		Forced:    forced,
	}
}
