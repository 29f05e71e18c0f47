package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	r, err := domain.NewTimeRange(start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.Duration())
}

func TestNewTimeRange_EndBeforeStart(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := domain.NewTimeRange(start, start.Add(-time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	_, err = domain.NewTimeRange(start, start)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestTimeRange_Overlaps(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: base, End: base.Add(time.Hour)}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		overlaps bool
	}{
		{
			name:     "overlapping start",
			start:    base.Add(-30 * time.Minute),
			end:      base.Add(30 * time.Minute),
			overlaps: true,
		},
		{
			name:     "overlapping end",
			start:    base.Add(30 * time.Minute),
			end:      base.Add(90 * time.Minute),
			overlaps: true,
		},
		{
			name:     "contained within",
			start:    base.Add(15 * time.Minute),
			end:      base.Add(45 * time.Minute),
			overlaps: true,
		},
		{
			name:     "covering",
			start:    base.Add(-time.Hour),
			end:      base.Add(2 * time.Hour),
			overlaps: true,
		},
		{
			name:     "adjacent before",
			start:    base.Add(-time.Hour),
			end:      base,
			overlaps: false,
		},
		{
			name:     "adjacent after",
			start:    base.Add(time.Hour),
			end:      base.Add(2 * time.Hour),
			overlaps: false,
		},
		{
			name:     "disjoint",
			start:    base.Add(3 * time.Hour),
			end:      base.Add(4 * time.Hour),
			overlaps: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := domain.TimeRange{Start: tt.start, End: tt.end}
			assert.Equal(t, tt.overlaps, r.Overlaps(other))
			assert.Equal(t, tt.overlaps, other.Overlaps(r))
		})
	}
}

func TestTimeRange_Contains(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: base, End: base.Add(time.Hour)}

	assert.True(t, r.Contains(base), "start is inclusive")
	assert.True(t, r.Contains(base.Add(30*time.Minute)))
	assert.False(t, r.Contains(base.Add(time.Hour)), "end is exclusive")
	assert.False(t, r.Contains(base.Add(-time.Second)))
}

func TestTimeRange_Intersect(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := domain.TimeRange{Start: base, End: base.Add(2 * time.Hour)}

	section, ok := r.Intersect(domain.TimeRange{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)})
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), section.Start)
	assert.Equal(t, base.Add(2*time.Hour), section.End)

	_, ok = r.Intersect(domain.TimeRange{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)})
	assert.False(t, ok, "touching ranges have no intersection")
}

func TestMergeRanges(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	at := func(offset, length time.Duration) domain.TimeRange {
		return domain.TimeRange{Start: base.Add(offset), End: base.Add(offset + length)}
	}

	merged := domain.MergeRanges([]domain.TimeRange{
		at(3*time.Hour, time.Hour),       // 12:00-13:00
		at(0, time.Hour),                 // 09:00-10:00
		at(30*time.Minute, time.Hour),    // 09:30-10:30 overlaps first
		at(90*time.Minute, 30*time.Minute), // 10:30-11:00 adjacent
	})

	require.Len(t, merged, 2)
	assert.Equal(t, at(0, 2*time.Hour), merged[0], "overlapping and adjacent ranges coalesce")
	assert.Equal(t, at(3*time.Hour, time.Hour), merged[1])
}

func TestMergeRanges_Empty(t *testing.T) {
	assert.Nil(t, domain.MergeRanges(nil))
}
