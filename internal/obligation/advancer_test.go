package obligation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/obligation/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceTransaction_MonthlyPlanRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 1, 10, 0, 0))
	tx := h.plan(t, at(2024, 1, 15, 0, 0), 3)

	// Not due yet: the INFO guard makes this a no-op.
	p, err := h.advancer.AdvanceTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Nil(t, p)

	steps := []struct {
		now     time.Time
		count   int
		nextDue time.Time
		active  bool
	}{
		{at(2024, 1, 15, 0, 0), 1, at(2024, 2, 15, 0, 0), true},
		{at(2024, 2, 15, 0, 0), 2, at(2024, 3, 15, 0, 0), true},
		{at(2024, 3, 15, 0, 0), 3, at(2024, 4, 15, 0, 0), false},
	}
	for _, step := range steps {
		h.clock.Set(step.now)
		p, err := h.advancer.AdvanceTransaction(ctx, tx.TransactionID)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, step.count, p.Count)
		assert.True(t, p.Value.Equal(tx.Value))
		assert.True(t, step.now.Equal(p.CreatedAt))

		got, err := h.store.GetTransaction(ctx, tx.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, step.count, got.MaterializedCount)
		assert.True(t, step.nextDue.Equal(got.NextDueDate), "next due %s", got.NextDueDate)
		assert.Equal(t, step.active, got.Active)
	}

	h.clock.Set(at(2024, 4, 15, 0, 0))
	due, err := h.store.FindDueTransactions(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = h.advancer.AdvanceTransaction(ctx, tx.TransactionID)
	assert.True(t, obligation.IsInvalidState(err), "got %v", err)

	txs, err := h.store.ListTransactions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Len(t, txs[0].Parcels, 3)
}

func TestAdvanceTransaction_NotFound(t *testing.T) {
	h := newHarness(t, at(2024, 1, 1, 0, 0))
	_, err := h.advancer.AdvanceTransaction(context.Background(), 999)
	assert.True(t, obligation.IsNotFound(err))
}

func TestAdvanceTransaction_DeletedIsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 1, 10, 0, 0))
	tx := h.plan(t, at(2024, 1, 15, 0, 0), 3)
	require.NoError(t, h.service.DeleteTransaction(ctx, userID, tx.TransactionID))

	h.clock.Set(at(2024, 1, 15, 0, 0))
	_, err := h.advancer.AdvanceTransaction(ctx, tx.TransactionID)
	assert.True(t, obligation.IsNotFound(err))
}

// staleStore serves a fixed snapshot of one transaction, as two ticks
// that scanned before either wrote would see it.
type staleStore struct {
	*memstore.Store
	snapshot *models.Transaction
}

func (s staleStore) GetTransaction(_ context.Context, _ int64) (*models.Transaction, error) {
	cp := *s.snapshot
	return &cp, nil
}

func TestAdvanceTransaction_StaleReadDoesNotDoubleMaterialize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 1, 10, 0, 0))
	tx := h.plan(t, at(2024, 1, 15, 0, 0), 3)
	h.clock.Set(at(2024, 1, 15, 0, 0))

	snapshot, err := h.store.GetTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	adv := obligation.NewAdvancer(staleStore{Store: h.store, snapshot: snapshot}, nil, h.clock)

	first, err := adv.AdvanceTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := adv.AdvanceTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Nil(t, second)

	got, err := h.store.GetTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaterializedCount)
}

func TestAdvanceTransaction_ConcurrentAdvancesMaterializeOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 1, 10, 0, 0))
	tx := h.plan(t, at(2024, 1, 15, 0, 0), 12)
	h.clock.Set(at(2024, 1, 15, 0, 0))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := h.advancer.AdvanceTransaction(ctx, tx.TransactionID)
			assert.NoError(t, err)
			if p != nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	got, err := h.store.GetTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaterializedCount)
}

func TestAdvanceNotification_ConfirmCreatesPendingMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 20, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)

	h.clock.Set(at(2024, 5, 1, 9, 0).Add(30 * time.Second))
	msg, err := h.advancer.AdvanceNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStatusPending, msg.Status)
	assert.Equal(t, "ext-1", msg.ExternalID)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "confirmation", sent[0].Kind)
	assert.Equal(t, userID, sent[0].Delivery.UserID)
	assert.True(t, at(2024, 5, 1, 9, 0).Equal(sent[0].Delivery.Notification.NextDueDate),
		"delivery describes the occurrence being announced")

	stored, err := h.store.FindMessageByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, msg.MessageID, stored.MessageID)

	got, err := h.store.GetNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NotificationTimes)
	assert.True(t, at(2024, 6, 1, 9, 0).Equal(got.NextDueDate))
	assert.True(t, got.Active)
}

func TestAdvanceNotification_InfoIsAutoAccepted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 1, 10, 0, 0))
	tx := h.plan(t, at(2024, 1, 15, 0, 0), 2)
	require.NotNil(t, tx.NotificationID)

	h.clock.Set(at(2024, 1, 15, 0, 0))
	msg, err := h.advancer.AdvanceNotification(ctx, *tx.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStatusAccepted, msg.Status)
	assert.NotNil(t, msg.ResolvedAt)

	sent := h.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reminder", sent[0].Kind)
}

func TestAdvanceNotification_DeliveryFailureStillAdvances(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 20, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)
	h.notifier.SetErr(errors.New("telegram unavailable"))

	h.clock.Set(at(2024, 5, 1, 9, 0))
	msg, err := h.advancer.AdvanceNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Empty(t, msg.ExternalID)

	got, err := h.store.GetNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NotificationTimes)
	assert.True(t, at(2024, 6, 1, 9, 0).Equal(got.NextDueDate))
}

func TestAdvanceNotification_NotDueIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 20, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)

	msg, err := h.advancer.AdvanceNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, h.notifier.Sent())
}

func TestAdvanceNotification_DeactivatesWhenExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 20, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 2)

	for _, now := range []time.Time{at(2024, 5, 1, 9, 0), at(2024, 6, 1, 9, 0)} {
		h.clock.Set(now)
		msg, err := h.advancer.AdvanceNotification(ctx, n.NotificationID)
		require.NoError(t, err)
		require.NotNil(t, msg)
	}

	got, err := h.store.GetNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.NotificationTimes)
	assert.False(t, got.Active)

	h.clock.Set(at(2024, 7, 1, 9, 0))
	_, err = h.advancer.AdvanceNotification(ctx, n.NotificationID)
	assert.True(t, obligation.IsInvalidState(err), "got %v", err)
}

func TestAdvanceNotification_PausedIsInvalidState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 4, 20, 0, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)
	_, err := h.service.ToggleNotification(ctx, userID, n.NotificationID)
	require.NoError(t, err)

	h.clock.Set(at(2024, 5, 1, 9, 0))
	_, err = h.advancer.AdvanceNotification(ctx, n.NotificationID)
	assert.True(t, obligation.IsInvalidState(err))
}

func TestAdvanceNotification_WithoutNotifierOnlyRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at(2024, 5, 1, 9, 0))
	n := h.goal(t, at(2024, 5, 1, 9, 0), 3)

	adv := obligation.NewAdvancer(h.store, nil, h.clock)
	msg, err := adv.AdvanceNotification(ctx, n.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Empty(t, msg.ExternalID)
	assert.Empty(t, h.notifier.Sent())
}
