package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/accord/internal/shared/domain"
	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a negotiation session.
type SessionStatus string

const (
	// SessionPending means the caller has not yet resolved the negotiation.
	SessionPending SessionStatus = "pending"
	// SessionAccepted means a proposal was accepted and executed.
	SessionAccepted SessionStatus = "accepted"
	// SessionForced means the requested event was force-scheduled over the conflicts.
	SessionForced SessionStatus = "forced"
	// SessionRejected means the caller declined all proposals.
	SessionRejected SessionStatus = "rejected"
	// SessionExpired means the session outlived its deadline.
	SessionExpired SessionStatus = "expired"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionPending
}

// NegotiationSession tracks one set of proposals from creation to a terminal
// resolution. Sessions are immutable once the status leaves pending.
type NegotiationSession struct {
	sharedDomain.BaseAggregateRoot
	organizer string
	request   MeetingRequest
	proposals []Proposal
	notes     []string // per-slot reasons why relocation was impossible
	status    SessionStatus
	expiresAt time.Time
}

// NewNegotiationSession opens a pending session for a conflicted request.
// Proposals are stored ascending by impact score; index 0 is the engine's
// preferred resolution. An empty proposal list is valid and supports the
// force-only flow.
func NewNegotiationSession(request MeetingRequest, proposals []Proposal, notes []string, ttl time.Duration) *NegotiationSession {
	sorted := make([]Proposal, len(proposals))
	copy(sorted, proposals)
	SortProposals(sorted)

	session := &NegotiationSession{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		organizer:         request.Organizer,
		request:           request,
		proposals:         sorted,
		notes:             notes,
		status:            SessionPending,
		expiresAt:         time.Now().UTC().Add(ttl),
	}
	session.AddDomainEvent(NewNegotiationOpened(session))
	return session
}

// Getters
func (s *NegotiationSession) Organizer() string       { return s.organizer }
func (s *NegotiationSession) Request() MeetingRequest { return s.request }
func (s *NegotiationSession) Proposals() []Proposal   { return s.proposals }
func (s *NegotiationSession) Notes() []string         { return s.notes }
func (s *NegotiationSession) Status() SessionStatus   { return s.status }
func (s *NegotiationSession) ExpiresAt() time.Time    { return s.expiresAt }

// PreferredProposal returns the lowest-impact proposal, if any exist.
func (s *NegotiationSession) PreferredProposal() (Proposal, bool) {
	if len(s.proposals) == 0 {
		return Proposal{}, false
	}
	return s.proposals[0], true
}

// FindProposal returns the proposal with the given id.
func (s *NegotiationSession) FindProposal(id uuid.UUID) (Proposal, bool) {
	for _, p := range s.proposals {
		if p.ID == id {
			return p, true
		}
	}
	return Proposal{}, false
}

// IsExpiredAt reports whether the session has outlived its deadline.
func (s *NegotiationSession) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// EnsurePending verifies the session can still be resolved. An expired
// session is transitioned lazily on access.
func (s *NegotiationSession) EnsurePending(now time.Time) error {
	if s.status != SessionPending {
		return NewExpiredProposalError("negotiation session already " + string(s.status))
	}
	if s.IsExpiredAt(now) {
		s.status = SessionExpired
		s.Touch()
		s.AddDomainEvent(NewNegotiationExpired(s))
		return NewExpiredProposalError("negotiation session expired")
	}
	return nil
}

// Accept transitions the session to accepted.
func (s *NegotiationSession) Accept(now time.Time) error {
	if err := s.EnsurePending(now); err != nil {
		return err
	}
	s.status = SessionAccepted
	s.Touch()
	s.AddDomainEvent(NewProposalAccepted(s))
	return nil
}

// Force transitions the session to forced.
func (s *NegotiationSession) Force(now time.Time) error {
	if err := s.EnsurePending(now); err != nil {
		return err
	}
	s.status = SessionForced
	s.Touch()
	s.AddDomainEvent(NewMeetingForced(s))
	return nil
}

// Reject transitions the session to rejected.
func (s *NegotiationSession) Reject(now time.Time) error {
	if err := s.EnsurePending(now); err != nil {
		return err
	}
	s.status = SessionRejected
	s.Touch()
	s.AddDomainEvent(NewNegotiationRejected(s))
	return nil
}

// Reopen reverts a terminal transition that could not be committed, so a
// failed execution does not consume the session.
func (s *NegotiationSession) Reopen() {
	s.status = SessionPending
	s.Touch()
}

// RehydrateNegotiationSession recreates a session from persisted state.
func RehydrateNegotiationSession(
	id uuid.UUID,
	organizer string,
	request MeetingRequest,
	proposals []Proposal,
	notes []string,
	status SessionStatus,
	createdAt, updatedAt, expiresAt time.Time,
) *NegotiationSession {
	entity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	return &NegotiationSession{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		organizer:         organizer,
		request:           request,
		proposals:         proposals,
		notes:             notes,
		status:            status,
		expiresAt:         expiresAt,
	}
}
