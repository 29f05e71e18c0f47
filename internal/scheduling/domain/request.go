package domain

import (
	"strings"
	"time"
)

// MinPriority and MaxPriority bound the priority scale; 5 is highest.
const (
	MinPriority = 1
	MaxPriority = 5
)

// ClampPriority bounds a priority score to the valid scale.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// MeetingRequest is the draft of a meeting to be scheduled. The attendee set
// always includes the organizer.
type MeetingRequest struct {
	Title       string
	Duration    time.Duration
	Organizer   string
	Attendees   []string
	Priority    int
	Description string
	Recurring   bool
	Preferred   TimeRange
}

// NewMeetingRequest creates a validated meeting request. The organizer is
// folded into the attendee set and duplicate attendees are dropped; attendee
// identity is case-insensitive, matching the calendar stores.
func NewMeetingRequest(title string, duration time.Duration, organizer string, attendees []string, priority int, description string, preferred TimeRange) (MeetingRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return MeetingRequest{}, NewValidationError("meeting title cannot be empty")
	}
	if duration <= 0 {
		return MeetingRequest{}, NewValidationError("duration must be positive")
	}
	organizer = strings.TrimSpace(organizer)
	if organizer == "" {
		return MeetingRequest{}, NewValidationError("organizer cannot be empty")
	}
	if !preferred.End.After(preferred.Start) {
		return MeetingRequest{}, NewValidationError("preferred time range must end after it starts")
	}
	if priority < MinPriority || priority > MaxPriority {
		return MeetingRequest{}, NewValidationError("priority must be between %d and %d", MinPriority, MaxPriority)
	}

	all := []string{organizer}
	seen := map[string]bool{strings.ToLower(organizer): true}
	for _, attendee := range attendees {
		attendee = strings.TrimSpace(attendee)
		if attendee == "" {
			return MeetingRequest{}, NewValidationError("attendee identifier cannot be empty")
		}
		if key := strings.ToLower(attendee); !seen[key] {
			seen[key] = true
			all = append(all, attendee)
		}
	}

	return MeetingRequest{
		Title:       title,
		Duration:    duration,
		Organizer:   organizer,
		Attendees:   all,
		Priority:    priority,
		Description: description,
		Preferred:   preferred,
	}, nil
}
