package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
)

// Confirmation resolves the user's answer to a CONFIRM reminder.
//
// A message moves PENDING -> ACCEPTED or PENDING -> REJECTED exactly once.
// Acceptance materializes the next parcel of the notification's transaction,
// creating and linking that transaction on first acceptance, in the same
// write that resolves the message. Rejection records the answer and gives
// up the occurrence's slot in the linked transaction; the notification
// keeps its own schedule.
type Confirmation struct {
	store Store
	clock Clock
}

func NewConfirmation(store Store, clock Clock) *Confirmation {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Confirmation{store: store, clock: clock}
}

// Resolution is the outcome of a resolved message. Parcel is nil on rejection.
type Resolution struct {
	Message *models.NotificationMessage
	Parcel  *models.Parcel
}

// Resolve answers message messageID on behalf of userID.
func (c *Confirmation) Resolve(ctx context.Context, userID, messageID int64, status models.MessageStatus) (*Resolution, error) {
	if status != models.MessageStatusAccepted && status != models.MessageStatusRejected {
		return nil, ValidationError("cannot resolve a message to %q", status)
	}

	msg, err := c.store.GetNotificationMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return c.resolve(ctx, userID, msg, status)
}

// ResolveByExternalID answers the message the delivery channel knows as externalID.
func (c *Confirmation) ResolveByExternalID(ctx context.Context, userID int64, externalID string, status models.MessageStatus) (*Resolution, error) {
	if status != models.MessageStatusAccepted && status != models.MessageStatusRejected {
		return nil, ValidationError("cannot resolve a message to %q", status)
	}
	if externalID == "" {
		return nil, ValidationError("external message id is required")
	}

	msg, err := c.store.FindMessageByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return c.resolve(ctx, userID, msg, status)
}

func (c *Confirmation) resolve(ctx context.Context, userID int64, msg *models.NotificationMessage, status models.MessageStatus) (*Resolution, error) {
	if msg.UserID != userID {
		return nil, NotFoundError("message %d not found", msg.MessageID)
	}
	if msg.Status.Terminal() {
		return nil, InvalidStateError("message %d is already %s", msg.MessageID, msg.Status)
	}

	now := c.clock.Now()
	if status == models.MessageStatusRejected {
		rejected, err := c.store.RejectNotificationMessage(ctx, msg.MessageID, now)
		if err != nil {
			return nil, err
		}
		return &Resolution{Message: rejected}, nil
	}

	accepted, parcel, err := c.store.AcceptNotificationMessage(ctx, msg.MessageID, now)
	if err != nil {
		return nil, fmt.Errorf("accept message %d: %w", msg.MessageID, err)
	}
	return &Resolution{Message: accepted, Parcel: parcel}, nil
}

// LinkedTransaction builds the transaction a CONFIRM notification gets on
// its first acceptance. It plans one parcel for every occurrence that has
// not been rejected, answered or not, and starts due at the given instant.
func LinkedTransaction(n *models.Notification, rejected int, at time.Time) *models.Transaction {
	planned := n.PlannedCount - rejected
	if planned < 1 {
		planned = 1
	}

	id, purpose := n.NotificationID, n.Purpose
	return &models.Transaction{
		UserID:              n.UserID,
		CategoryID:          n.CategoryID,
		Type:                n.Type,
		Value:               n.Value,
		Description:         n.Description,
		Interval:            n.Interval,
		ReferenceDate:       at,
		NextDueDate:         at,
		PlannedCount:        planned,
		Active:              true,
		NotificationID:      &id,
		NotificationPurpose: &purpose,
	}
}
