package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvalidTimeRange = errors.New("end time must be after start time")

// TimeRange represents a half-open time period [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a time range, validating that it is non-empty.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// Overlaps checks if two time ranges overlap.
func (t TimeRange) Overlaps(other TimeRange) bool {
	return t.Start.Before(other.End) && other.Start.Before(t.End)
}

// Contains checks if an instant falls within the range.
func (t TimeRange) Contains(at time.Time) bool {
	return !at.Before(t.Start) && at.Before(t.End)
}

// Covers checks if the range fully contains another range.
func (t TimeRange) Covers(other TimeRange) bool {
	return !other.Start.Before(t.Start) && !other.End.After(t.End)
}

// Adjacent checks if the ranges touch without overlapping.
func (t TimeRange) Adjacent(other TimeRange) bool {
	return t.End.Equal(other.Start) || other.End.Equal(t.Start)
}

// Duration returns the length of the range.
func (t TimeRange) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Intersect returns the overlap of two ranges and whether one exists.
func (t TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	start := t.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := t.End
	if other.End.Before(end) {
		end = other.End
	}
	if !end.After(start) {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end}, true
}

// IsZero reports whether the range is the zero value.
func (t TimeRange) IsZero() bool {
	return t.Start.IsZero() && t.End.IsZero()
}

// String formats the range for logs and messages.
func (t TimeRange) String() string {
	return fmt.Sprintf("%s - %s", t.Start.Format("2006-01-02 15:04"), t.End.Format("15:04"))
}

// MergeRanges coalesces overlapping and adjacent ranges into a minimal
// sorted set. The input is not modified.
func MergeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start.After(last.End) {
			merged = append(merged, r)
			continue
		}
		if r.End.After(last.End) {
			last.End = r.End
		}
	}
	return merged
}
