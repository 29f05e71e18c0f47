package domain

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Proposal is a complete candidate resolution for a scheduling request: the
// requested event's slot plus the relocations needed to clear the conflicts.
type Proposal struct {
	ID                uuid.UUID
	Request           MeetingRequest
	Slot              TimeRange
	Conflicts         []Conflict
	AffectedAttendees []string
	ImpactScore       float64
}

// NewProposal assembles a proposal from a relocation plan. The conflict set
// must already be merged by event id; affected attendees are the unique union
// of all conflict attendees plus the requested attendees.
func NewProposal(request MeetingRequest, slot TimeRange, conflicts *ConflictSet) Proposal {
	affected := conflicts.Attendees()
	for _, attendee := range request.Attendees {
		if !containsString(affected, attendee) {
			affected = append(affected, attendee)
		}
	}

	return Proposal{
		ID:                uuid.New(),
		Request:           request,
		Slot:              slot,
		Conflicts:         conflicts.Conflicts(),
		AffectedAttendees: affected,
	}
}

// MovedCount returns the number of events this proposal relocates.
func (p Proposal) MovedCount() int {
	return len(p.Conflicts)
}

// Signature identifies a proposal by its resulting (slot, conflict-set) pair,
// used to deduplicate candidates that resolve to the same outcome.
func (p Proposal) Signature() string {
	ids := make([]string, 0, len(p.Conflicts))
	for _, c := range p.Conflicts {
		ids = append(ids, c.EventID)
	}
	sort.Strings(ids)
	return p.Slot.Start.UTC().Format("2006-01-02T15:04") + "|" + strings.Join(ids, ",")
}

// ImpactWeights tune how proposals are ranked against each other.
type ImpactWeights struct {
	MovedEvent       float64 // per relocated event
	AffectedAttendee float64 // per distinct attendee touched
	PriorityDelta    float64 // per point of priority gap closed
}

// DefaultImpactWeights returns the standard ranking weights.
func DefaultImpactWeights() ImpactWeights {
	return ImpactWeights{
		MovedEvent:       1.0,
		AffectedAttendee: 0.5,
		PriorityDelta:    0.25,
	}
}

// Score computes the weighted impact of a proposal. The priority delta is the
// requested priority minus each moved event's priority, always at least one
// by the eligibility rule.
func (w ImpactWeights) Score(p Proposal) float64 {
	deltaSum := 0
	for _, c := range p.Conflicts {
		deltaSum += p.Request.Priority - c.Priority
	}
	return w.MovedEvent*float64(len(p.Conflicts)) +
		w.AffectedAttendee*float64(len(p.AffectedAttendees)) +
		w.PriorityDelta*float64(deltaSum)
}

// SortProposals orders proposals ascending by impact score, preserving input
// order for equal scores so the earliest-generated candidate stays preferred.
func SortProposals(proposals []Proposal) {
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].ImpactScore < proposals[j].ImpactScore
	})
}
