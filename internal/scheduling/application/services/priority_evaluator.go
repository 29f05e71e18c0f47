package services

import (
	"strings"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

// EvaluatorConfig tunes the deterministic priority heuristic.
type EvaluatorConfig struct {
	// BasePriority is the starting score before adjustments.
	BasePriority int

	// AttendeeThreshold is the attendee count above which a meeting gains
	// one priority point.
	AttendeeThreshold int

	// UrgentKeywords raise the score by one when found in title or
	// description (case-insensitive substring match).
	UrgentKeywords []string

	// LowStakesKeywords lower the score by one; routine syncs should lose
	// negotiations against focused work.
	LowStakesKeywords []string
}

// DefaultEvaluatorConfig returns the standard heuristic settings.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		BasePriority:      3,
		AttendeeThreshold: 3,
		UrgentKeywords:    []string{"urgent", "important", "priority"},
		LowStakesKeywords: []string{"sync", "checkin", "1:1"},
	}
}

// PriorityInput is everything the evaluator looks at.
type PriorityInput struct {
	Title         string
	Description   string
	AttendeeCount int
	Recurring     bool

	// Explicit, when non-zero, bypasses the heuristic entirely.
	Explicit int
}

// PriorityEvaluator derives a 1-5 priority score from meeting metadata.
// Same input, same score: the evaluator holds no state and consults nothing
// external.
type PriorityEvaluator struct {
	config EvaluatorConfig
}

// NewPriorityEvaluator creates an evaluator with the given settings.
func NewPriorityEvaluator(config EvaluatorConfig) *PriorityEvaluator {
	return &PriorityEvaluator{config: config}
}

// Evaluate scores the input. An explicit priority is clamped and returned
// unchanged; otherwise the heuristic applies base, attendee, keyword, and
// recurrence adjustments, clamped to the valid scale.
func (e *PriorityEvaluator) Evaluate(input PriorityInput) int {
	if input.Explicit != 0 {
		return domain.ClampPriority(input.Explicit)
	}

	score := e.config.BasePriority
	if input.AttendeeCount > e.config.AttendeeThreshold {
		score++
	}

	text := strings.ToLower(input.Title + " " + input.Description)
	if containsAny(text, e.config.UrgentKeywords) {
		score++
	}
	if containsAny(text, e.config.LowStakesKeywords) {
		score--
	}
	if input.Recurring {
		score--
	}
	return domain.ClampPriority(score)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
