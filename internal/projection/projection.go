// Package projection builds forward-looking views of installment plans
// without touching the store.
package projection

import (
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/recurrence"
)

// Schedule is the persisted scheduling state the projector needs.
type Schedule struct {
	NextDueDate       time.Time
	Interval          models.IntervalKind
	PlannedCount      int
	MaterializedCount int
}

// Dates returns the due dates of the occurrences that would materialize
// between NextDueDate and windowEnd (inclusive), clipped to what is left
// of the plan.
func Dates(s Schedule, windowEnd time.Time) ([]time.Time, error) {
	remaining := s.PlannedCount - s.MaterializedCount
	if remaining <= 0 || s.NextDueDate.After(windowEnd) {
		return nil, nil
	}

	n := recurrence.OccurrenceCount(s.NextDueDate, windowEnd, s.Interval)
	if n > remaining {
		n = remaining
	}

	dates := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		due, err := recurrence.Step(s.NextDueDate, s.Interval, i)
		if err != nil {
			return nil, fmt.Errorf("step schedule: %w", err)
		}
		dates = append(dates, due)
	}
	return dates, nil
}

// Project synthesizes the transaction's future, not yet materialized
// parcels up to windowEnd. Deleted and inactive transactions project nothing.
func Project(tx *models.Transaction, windowEnd time.Time) ([]models.Projected, error) {
	if tx.DeletedAt != nil || !tx.Active {
		return nil, nil
	}

	dates, err := Dates(Schedule{
		NextDueDate:       tx.NextDueDate,
		Interval:          tx.Interval,
		PlannedCount:      tx.PlannedCount,
		MaterializedCount: tx.MaterializedCount,
	}, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("project transaction %d: %w", tx.TransactionID, err)
	}

	projected := make([]models.Projected, len(dates))
	for i, due := range dates {
		projected[i] = models.Projected{
			TransactionID: tx.TransactionID,
			Count:         tx.MaterializedCount + i + 1,
			DueAt:         due,
			Value:         tx.Value,
		}
	}
	return projected, nil
}

// Timeline returns the transaction's non-deleted parcels followed by its
// projected occurrences up to windowEnd.
func Timeline(tx *models.Transaction, windowEnd time.Time) ([]models.Occurrence, error) {
	projected, err := Project(tx, windowEnd)
	if err != nil {
		return nil, err
	}

	timeline := make([]models.Occurrence, 0, len(tx.Parcels)+len(projected))
	for _, p := range tx.Parcels {
		if p.DeletedAt != nil {
			continue
		}
		timeline = append(timeline, models.Materialized{Parcel: p})
	}
	for _, p := range projected {
		timeline = append(timeline, p)
	}
	return timeline, nil
}
