package domain

import "time"

// BusinessHours defines the weekday window within which meetings may be
// scheduled or relocated. All scheduling is computed in this one calendar.
type BusinessHours struct {
	DayStart time.Duration // offset from midnight, e.g. 9h for 09:00
	DayEnd   time.Duration // offset from midnight, e.g. 17h for 17:00
}

// DefaultBusinessHours returns the standard 9-to-5 weekday window.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		DayStart: 9 * time.Hour,
		DayEnd:   17 * time.Hour,
	}
}

// DayLength returns the length of one business day.
func (b BusinessHours) DayLength() time.Duration {
	return b.DayEnd - b.DayStart
}

// IsWorkday reports whether the given instant falls on a weekday.
func (b BusinessHours) IsWorkday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// WindowOn returns the business-hours range for the day containing t.
// The day need not be a workday; callers check IsWorkday separately.
func (b BusinessHours) WindowOn(t time.Time) TimeRange {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return TimeRange{Start: midnight.Add(b.DayStart), End: midnight.Add(b.DayEnd)}
}

// ContainsRange reports whether r fits entirely within business hours on a
// single workday. Ranges spanning midnight or a weekend are never schedulable.
func (b BusinessHours) ContainsRange(r TimeRange) bool {
	if !b.IsWorkday(r.Start) {
		return false
	}
	return b.WindowOn(r.Start).Covers(r)
}

// NextOpen returns the earliest instant at or after t that lies within
// business hours, skipping weekends and off-hours.
func (b BusinessHours) NextOpen(t time.Time) time.Time {
	for {
		if !b.IsWorkday(t) {
			t = b.startOfNextDay(t)
			continue
		}
		window := b.WindowOn(t)
		if t.Before(window.Start) {
			return window.Start
		}
		if !t.Before(window.End) {
			t = b.startOfNextDay(t)
			continue
		}
		return t
	}
}

// NextWindowStart returns the opening instant of the next business day
// strictly after the day containing t.
func (b BusinessHours) NextWindowStart(t time.Time) time.Time {
	return b.NextOpen(b.startOfNextDay(t))
}

// Clip intersects r with the business-hours sub-intervals it spans,
// returning one range per workday touched.
func (b BusinessHours) Clip(r TimeRange) []TimeRange {
	var clipped []TimeRange
	cursor := r.Start
	for cursor.Before(r.End) {
		if b.IsWorkday(cursor) {
			if section, ok := b.WindowOn(cursor).Intersect(r); ok {
				clipped = append(clipped, section)
			}
		}
		cursor = b.startOfNextDay(cursor)
	}
	return clipped
}

func (b BusinessHours) startOfNextDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}
