package obligation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/recurrence"
)

// Advancer performs the "this occurrence has happened" transition for a
// single obligation. Every write is conditional on the schedule it read, so
// a concurrent advance of the same obligation turns into a no-op.
type Advancer struct {
	store    Store
	notifier Notifier
	clock    Clock
}

// NewAdvancer creates an Advancer. A nil notifier records reminder messages
// without delivering them.
func NewAdvancer(store Store, notifier Notifier, clock Clock) *Advancer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Advancer{store: store, notifier: notifier, clock: clock}
}

// AdvanceTransaction materializes the next parcel of a transaction. It
// returns a nil parcel when there is nothing to do: an INFO-linked
// transaction that is not due yet, or a lost race with another advance.
func (a *Advancer) AdvanceTransaction(ctx context.Context, transactionID int64) (*models.Parcel, error) {
	tx, err := a.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	if tx.LinkedToInfo() && tx.NextDueDate.After(now) {
		return nil, nil
	}

	adv, err := NextParcel(tx, now)
	if err != nil {
		return nil, err
	}
	parcel, err := a.store.MaterializeParcel(ctx, adv)
	if err != nil {
		if IsConflict(err) {
			log.Printf("Transaction %d was advanced concurrently, skipping", transactionID)
			return nil, nil
		}
		return nil, fmt.Errorf("materialize parcel %d of transaction %d: %w", adv.ExpectedCount+1, transactionID, err)
	}
	return parcel, nil
}

// NextParcel describes materializing the next parcel of tx at the given
// instant, guarded by the schedule tx was read with. A transaction whose
// plan is used up yields a CodeInvalidState error.
func NextParcel(tx *models.Transaction, at time.Time) (ParcelAdvance, error) {
	if tx.MaterializedCount >= tx.PlannedCount {
		return ParcelAdvance{}, InvalidStateError("transaction %d already has %d of %d parcels",
			tx.TransactionID, tx.MaterializedCount, tx.PlannedCount)
	}

	next, err := recurrence.NextOccurrence(tx.NextDueDate, tx.Interval)
	if err != nil {
		return ParcelAdvance{}, fmt.Errorf("transaction %d: %w", tx.TransactionID, err)
	}

	return ParcelAdvance{
		TransactionID:   tx.TransactionID,
		UserID:          tx.UserID,
		NotificationID:  tx.NotificationID,
		ExpectedNextDue: tx.NextDueDate,
		ExpectedCount:   tx.MaterializedCount,
		NextDue:         next,
		Active:          tx.MaterializedCount+1 < tx.PlannedCount,
		Value:           tx.Value,
		At:              at,
	}, nil
}

// AdvanceNotification steps a notification's schedule, records the reminder
// message and then delivers it. The schedule moves forward even when
// delivery fails; the failure is logged and the message keeps an empty
// external id.
func (a *Advancer) AdvanceNotification(ctx context.Context, notificationID int64) (*models.NotificationMessage, error) {
	n, err := a.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if n.Exhausted() {
		return nil, InvalidStateError("notification %d already sent %d of %d reminders",
			notificationID, n.NotificationTimes, n.PlannedCount)
	}
	if !n.Active {
		return nil, InvalidStateError("notification %d is inactive", notificationID)
	}

	now := a.clock.Now()
	if n.NextDueDate.After(now) {
		return nil, nil
	}

	var (
		status models.MessageStatus
		send   func(context.Context, Delivery) (string, error)
	)
	switch n.Purpose {
	case models.PurposeConfirm:
		status = models.MessageStatusPending
		if a.notifier != nil {
			send = a.notifier.SendConfirmationPrompt
		}
	case models.PurposeInfo:
		status = models.MessageStatusAccepted
		if a.notifier != nil {
			send = a.notifier.SendReminder
		}
	default:
		return nil, fmt.Errorf("notification %d: unknown purpose %q", notificationID, n.Purpose)
	}

	next, err := recurrence.NextOccurrence(n.NextDueDate, n.Interval)
	if err != nil {
		return nil, fmt.Errorf("notification %d: %w", notificationID, err)
	}

	times := n.NotificationTimes + 1
	msg, err := a.store.AdvanceNotification(ctx, NotificationAdvance{
		NotificationID:  n.NotificationID,
		UserID:          n.UserID,
		ExpectedNextDue: n.NextDueDate,
		ExpectedTimes:   n.NotificationTimes,
		NextDue:         next,
		Active:          times < n.PlannedCount,
		Status:          status,
		At:              now,
	})
	if err != nil {
		if IsConflict(err) {
			log.Printf("Notification %d was advanced concurrently, skipping", notificationID)
			return nil, nil
		}
		return nil, fmt.Errorf("advance notification %d: %w", notificationID, err)
	}

	if send == nil {
		return msg, nil
	}

	// n still describes the occurrence being announced.
	externalID, err := send(ctx, Delivery{UserID: n.UserID, Notification: n, Message: msg})
	if err != nil {
		log.Printf("Failed to deliver message %d: %v", msg.MessageID,
			DeliveryError(err, "notification %d to user %d", notificationID, n.UserID))
		return msg, nil
	}
	if err := a.store.SetMessageExternalID(ctx, msg.MessageID, externalID); err != nil {
		log.Printf("Failed to record external id for message %d: %v", msg.MessageID, err)
		return msg, nil
	}
	msg.ExternalID = externalID
	return msg, nil
}
