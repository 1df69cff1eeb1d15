package obligation_test

import (
	"context"
	"testing"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/obligation/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records the page sizes FindDueReminders returned.
type countingStore struct {
	*memstore.Store
	pages []int
}

func (s *countingStore) FindDueReminders(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.Notification, error) {
	page, err := s.Store.FindDueReminders(ctx, from, to, limit, offset)
	s.pages = append(s.pages, len(page))
	return page, err
}

func ids(ns []*models.Notification) []int64 {
	var out []int64
	for _, n := range ns {
		out = append(out, n.NotificationID)
	}
	return out
}

func TestMinuteWindow(t *testing.T) {
	from, to := obligation.MinuteWindow(time.Date(2024, 5, 1, 9, 0, 42, 500, time.UTC))
	assert.True(t, at(2024, 5, 1, 9, 0).Equal(from))
	assert.True(t, at(2024, 5, 1, 9, 1).Add(-time.Nanosecond).Equal(to))
}

func TestScanner_DueRemindersPagesUntilShortPage(t *testing.T) {
	tests := []struct {
		name  string
		due   int
		pages []int
	}{
		{"partial last page", 5, []int{2, 2, 1}},
		{"exact multiple", 4, []int{2, 2, 0}},
		{"nothing due", 0, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, at(2024, 4, 1, 0, 0))
			for i := 0; i < tt.due; i++ {
				h.goal(t, at(2024, 5, 1, 9, 0).Add(time.Duration(i)*time.Second), 3)
			}
			h.goal(t, at(2024, 5, 1, 9, 1), 3) // next minute

			store := &countingStore{Store: h.store}
			scanner := obligation.NewScanner(store, 2)

			got, err := scanner.DueReminders(context.Background(), at(2024, 5, 1, 9, 0).Add(20*time.Second))
			require.NoError(t, err)
			assert.Len(t, got, tt.due)
			assert.Equal(t, tt.pages, store.pages)
		})
	}
}

func TestScanner_ScanSplitsAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 1, 0, 0))

	current := h.goal(t, at(2024, 5, 1, 9, 0), 3)
	overdue := h.goal(t, at(2024, 4, 30, 9, 0), 3)
	future := h.goal(t, at(2024, 5, 2, 9, 0), 3)
	paused := h.goal(t, at(2024, 5, 1, 9, 0), 3)
	_, err := h.service.ToggleNotification(ctx, userID, paused.NotificationID)
	require.NoError(t, err)

	plan := h.plan(t, at(2024, 4, 15, 0, 0), 6)
	single, err := h.service.CreateTransaction(ctx, userID, obligation.TransactionInput{
		Type:         models.TransactionTypeIncome,
		Value:        plan.Value,
		Interval:     models.IntervalMonthly,
		PlannedCount: 1,
	})
	require.NoError(t, err)

	scanner := obligation.NewScanner(h.store, 0)
	due, err := scanner.Scan(ctx, at(2024, 5, 1, 9, 0).Add(30*time.Second))
	require.NoError(t, err)

	assert.Equal(t, []int64{current.NotificationID}, ids(due.Reminders))
	assert.Equal(t, []int64{overdue.NotificationID, *plan.NotificationID}, ids(due.Notifications))
	assert.NotContains(t, ids(due.Notifications), future.NotificationID)

	require.Len(t, due.Transactions, 1)
	assert.Equal(t, plan.TransactionID, due.Transactions[0].TransactionID)
	assert.NotEqual(t, single.TransactionID, due.Transactions[0].TransactionID)
}

func TestScanner_ScanIsReadOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 1, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)
	plan := h.plan(t, at(2024, 4, 15, 0, 0), 3)

	scanner := obligation.NewScanner(h.store, 10)
	now := at(2024, 5, 1, 9, 0)
	first, err := scanner.Scan(ctx, now)
	require.NoError(t, err)
	second, err := scanner.Scan(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := h.store.GetNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NotificationTimes)
	tx, err := h.store.GetTransaction(ctx, plan.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, 0, tx.MaterializedCount)
}
