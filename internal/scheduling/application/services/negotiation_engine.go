package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// NegotiationConfig tunes proposal generation.
type NegotiationConfig struct {
	// MaxProposals caps how many proposals a session carries.
	MaxProposals int

	// Weights rank proposals against each other.
	Weights domain.ImpactWeights
}

// DefaultNegotiationConfig returns the standard negotiation settings.
func DefaultNegotiationConfig() NegotiationConfig {
	return NegotiationConfig{
		MaxProposals: 3,
		Weights:      domain.DefaultImpactWeights(),
	}
}

// NegotiationEngine turns an exhausted slot scan into ranked relocation
// proposals. Priority decides who moves: only events with strictly lower
// priority than the request are movable; a tie protects the incumbent.
type NegotiationEngine struct {
	slots  *SlotFinder
	config NegotiationConfig
	logger *slog.Logger
}

// NewNegotiationEngine creates a negotiation engine.
func NewNegotiationEngine(slots *SlotFinder, config NegotiationConfig, logger *slog.Logger) *NegotiationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &NegotiationEngine{slots: slots, config: config, logger: logger}
}

// Propose builds up to MaxProposals proposals from the candidate slots,
// ascending by impact. Candidates containing a blocking conflict, or whose
// eligible conflicts cannot all be relocated, are dropped with a note. An
// empty proposal list is a valid outcome; the caller still opens a session
// so the organizer can force.
func (e *NegotiationEngine) Propose(ctx context.Context, request domain.MeetingRequest, candidates []CandidateSlot) ([]domain.Proposal, []string, error) {
	var proposals []domain.Proposal
	var notes []string
	seen := make(map[string]bool) // proposal signature -> already generated

	for _, candidate := range candidates {
		blocking := blockingConflicts(request.Priority, candidate.Conflicts)
		if len(blocking) > 0 {
			notes = append(notes, fmt.Sprintf(
				"slot %s blocked by %q (priority %d >= %d)",
				candidate.Slot, blocking[0].Summary, blocking[0].Priority, request.Priority))
			continue
		}

		relocated, note, err := e.relocateAll(ctx, candidate)
		if err != nil {
			return nil, nil, err
		}
		if note != "" {
			notes = append(notes, note)
			continue
		}

		proposal := domain.NewProposal(request, candidate.Slot, relocated)
		proposal.ImpactScore = e.config.Weights.Score(proposal)

		if signature := proposal.Signature(); !seen[signature] {
			seen[signature] = true
			proposals = append(proposals, proposal)
		}
	}

	domain.SortProposals(proposals)
	if len(proposals) > e.config.MaxProposals {
		proposals = proposals[:e.config.MaxProposals]
	}

	e.logger.Debug("negotiation proposals generated",
		"title", request.Title,
		"candidates", len(candidates),
		"proposals", len(proposals),
		"dropped", len(notes),
	)
	return proposals, notes, nil
}

// relocateAll finds a new slot for every conflict at the candidate, feeding
// earlier relocations back into each search so the plan stays internally
// consistent. One unmovable event kills the whole candidate: a proposal must
// clear its slot completely or not at all.
func (e *NegotiationEngine) relocateAll(ctx context.Context, candidate CandidateSlot) (*domain.ConflictSet, string, error) {
	relocated := domain.NewConflictSet()
	for _, conflict := range candidate.Conflicts {
		slot, found, err := e.slots.FindRelocation(ctx, conflict, candidate.Slot, relocated.Conflicts())
		if err != nil {
			return nil, "", err
		}
		if !found {
			return nil, fmt.Sprintf(
				"slot %s infeasible: no relocation found for %q",
				candidate.Slot, conflict.Summary), nil
		}
		moved := conflict.Clone()
		moved.Relocated = &slot
		relocated.Add(moved)
	}
	return relocated, "", nil
}

func blockingConflicts(requestPriority int, conflicts []domain.Conflict) []domain.Conflict {
	var blocking []domain.Conflict
	for _, c := range conflicts {
		if c.Priority >= requestPriority {
			blocking = append(blocking, c)
		}
	}
	return blocking
}
