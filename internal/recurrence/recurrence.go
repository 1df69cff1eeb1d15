// Package recurrence implements the calendar arithmetic behind every
// recurring obligation: stepping a due date forward and counting the
// interval buckets touched by a date range.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/teambition/rrule-go"
)

// ErrUnknownInterval is wrapped by every error caused by an interval kind
// outside models.Intervals.
var ErrUnknownInterval = errors.New("unknown interval")

// NextOccurrence adds exactly one calendar step to current. Month and year
// steps clamp to the last valid day of the target month, so Jan 31 becomes
// Feb 28 (or 29) instead of rolling into March.
func NextOccurrence(current time.Time, kind models.IntervalKind) (time.Time, error) {
	switch kind {
	case models.IntervalDaily:
		return current.AddDate(0, 0, 1), nil
	case models.IntervalWeekly:
		return current.AddDate(0, 0, 7), nil
	case models.IntervalMonthly:
		return addMonths(current, 1), nil
	case models.IntervalYearly:
		return addMonths(current, 12), nil
	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownInterval, kind)
	}
}

// Step applies NextOccurrence n times. Stepping is iterative, so the dates
// match what the scheduler persists one tick at a time.
func Step(current time.Time, kind models.IntervalKind, n int) (time.Time, error) {
	if !kind.Valid() {
		return current, fmt.Errorf("%w: %q", ErrUnknownInterval, kind)
	}
	next := current
	for i := 0; i < n; i++ {
		var err error
		if next, err = NextOccurrence(next, kind); err != nil {
			return current, err
		}
	}
	return next, nil
}

// OccurrenceCount returns how many interval buckets (days, ISO weeks,
// calendar months or calendar years) the inclusive range [start, end]
// touches. It returns 0 when start is after end or kind is unknown.
func OccurrenceCount(start, end time.Time, kind models.IntervalKind) int {
	if start.After(end) {
		return 0
	}

	var freq rrule.Frequency
	switch kind {
	case models.IntervalDaily:
		freq = rrule.DAILY
	case models.IntervalWeekly:
		freq = rrule.WEEKLY
	case models.IntervalMonthly:
		freq = rrule.MONTHLY
	case models.IntervalYearly:
		freq = rrule.YEARLY
	default:
		return 0
	}

	dtstart := BucketStart(start, kind)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    freq,
		Dtstart: dtstart,
		Wkst:    rrule.MO,
	})
	if err != nil {
		return 0
	}
	return len(rule.Between(dtstart, end, true))
}

// BucketStart truncates t to the start of its interval bucket in t's
// location: midnight, Monday midnight, the 1st of the month, or Jan 1.
func BucketStart(t time.Time, kind models.IntervalKind) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch kind {
	case models.IntervalWeekly:
		offset := (int(t.Weekday()) + 6) % 7 // days since Monday
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case models.IntervalMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case models.IntervalYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
