package obligation_test

import (
	"context"
	"testing"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/obligation/memstore"
	"github.com/hray3182/ledgerline/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const userID int64 = 1

type harness struct {
	store        *memstore.Store
	clock        *testutil.FakeClock
	notifier     *testutil.RecordingNotifier
	advancer     *obligation.Advancer
	confirmation *obligation.Confirmation
	service      *obligation.Service
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	store := memstore.New()
	clock := testutil.NewFakeClock(now)
	notifier := &testutil.RecordingNotifier{}
	advancer := obligation.NewAdvancer(store, notifier, clock)
	return &harness{
		store:        store,
		clock:        clock,
		notifier:     notifier,
		advancer:     advancer,
		confirmation: obligation.NewConfirmation(store, clock),
		service:      obligation.NewService(store, clock),
	}
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func (h *harness) goal(t *testing.T, due time.Time, planned int) *models.Notification {
	t.Helper()
	n, err := h.service.CreateFutureGoal(context.Background(), userID, obligation.GoalInput{
		Type:          models.TransactionTypeExpense,
		Value:         decimal.RequireFromString("250.00"),
		Description:   "Academia",
		Interval:      models.IntervalMonthly,
		PlannedCount:  planned,
		ReferenceDate: due,
	})
	require.NoError(t, err)
	return n
}

func (h *harness) plan(t *testing.T, first time.Time, planned int) *models.Transaction {
	t.Helper()
	tx, err := h.service.CreateTransaction(context.Background(), userID, obligation.TransactionInput{
		Type:         models.TransactionTypeExpense,
		Value:        decimal.RequireFromString("100.00"),
		Description:  "Notebook",
		Interval:     models.IntervalMonthly,
		PlannedCount: planned,
		FirstDate:    &first,
	})
	require.NoError(t, err)
	return tx
}
