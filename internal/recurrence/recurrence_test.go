package recurrence

import (
	"testing"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		kind models.IntervalKind
		want time.Time
	}{
		{"daily", date(2024, 1, 15), models.IntervalDaily, date(2024, 1, 16)},
		{"daily crosses month", date(2024, 1, 31), models.IntervalDaily, date(2024, 2, 1)},
		{"weekly", date(2024, 1, 15), models.IntervalWeekly, date(2024, 1, 22)},
		{"monthly", date(2024, 1, 15), models.IntervalMonthly, date(2024, 2, 15)},
		{"monthly clamps to leap february", date(2024, 1, 31), models.IntervalMonthly, date(2024, 2, 29)},
		{"monthly clamps to february", date(2023, 1, 31), models.IntervalMonthly, date(2023, 2, 28)},
		{"monthly clamps to 30 day month", date(2024, 3, 31), models.IntervalMonthly, date(2024, 4, 30)},
		{"monthly crosses year", date(2024, 12, 10), models.IntervalMonthly, date(2025, 1, 10)},
		{"yearly", date(2024, 6, 1), models.IntervalYearly, date(2025, 6, 1)},
		{"yearly from leap day", date(2024, 2, 29), models.IntervalYearly, date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.from, tt.kind)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNextOccurrence_UnknownInterval(t *testing.T) {
	_, err := NextOccurrence(date(2024, 1, 1), models.IntervalKind("HOURLY"))
	assert.ErrorIs(t, err, ErrUnknownInterval)
}

func TestNextOccurrence_AlwaysAdvances(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 800; day += 3 {
		d := start.AddDate(0, 0, day)
		for _, kind := range models.Intervals {
			once, err := NextOccurrence(d, kind)
			require.NoError(t, err)
			assert.True(t, once.After(d), "%s %s did not advance", kind, d)

			twice, err := NextOccurrence(once, kind)
			require.NoError(t, err)
			stepped, err := Step(d, kind, 2)
			require.NoError(t, err)
			assert.True(t, twice.Equal(stepped), "%s %s: %s != %s", kind, d, twice, stepped)
		}
	}
}

func TestStep(t *testing.T) {
	got, err := Step(date(2024, 1, 31), models.IntervalMonthly, 3)
	require.NoError(t, err)
	// Jan 31 -> Feb 29 -> Mar 29 -> Apr 29
	assert.True(t, date(2024, 4, 29).Equal(got), "got %s", got)

	same, err := Step(date(2024, 1, 31), models.IntervalMonthly, 0)
	require.NoError(t, err)
	assert.True(t, date(2024, 1, 31).Equal(same))

	_, err = Step(date(2024, 1, 31), models.IntervalKind(""), 1)
	assert.ErrorIs(t, err, ErrUnknownInterval)
}

func TestOccurrenceCount(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		kind  models.IntervalKind
		want  int
	}{
		{"three iso weeks", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), models.IntervalWeekly, 3},
		{"week boundary inclusive", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), models.IntervalWeekly, 4},
		{"midweek start", time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), models.IntervalWeekly, 2},
		{"months touched", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), models.IntervalMonthly, 8},
		{"same month", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), models.IntervalMonthly, 1},
		{"days touched", time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC), models.IntervalDaily, 3},
		{"same instant", date(2024, 1, 1), date(2024, 1, 1), models.IntervalDaily, 1},
		{"years touched", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), models.IntervalYearly, 3},
		{"start after end", date(2024, 2, 1), date(2024, 1, 1), models.IntervalMonthly, 0},
		{"unknown interval", date(2024, 1, 1), date(2024, 2, 1), models.IntervalKind("FORTNIGHTLY"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OccurrenceCount(tt.start, tt.end, tt.kind))
		})
	}
}

func TestBucketStart(t *testing.T) {
	wed := time.Date(2024, 1, 3, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(wed, models.IntervalWeekly))
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), BucketStart(wed, models.IntervalDaily))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(wed, models.IntervalMonthly))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(wed, models.IntervalYearly))

	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(sunday, models.IntervalWeekly))
}
