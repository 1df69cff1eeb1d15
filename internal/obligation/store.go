package obligation

import (
	"context"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/shopspring/decimal"
)

// ParcelAdvance materializes the next installment of a transaction. The
// store applies it only if the transaction still has ExpectedNextDue and
// ExpectedCount; otherwise it returns a CodeConflict error and writes nothing.
// The new parcel's position is ExpectedCount+1.
type ParcelAdvance struct {
	TransactionID   int64
	UserID          int64
	NotificationID  *int64
	ExpectedNextDue time.Time
	ExpectedCount   int
	NextDue         time.Time
	Active          bool
	Value           decimal.Decimal
	At              time.Time
}

// NotificationAdvance moves a notification's schedule one step and records
// the reminder message in the same write, guarded like ParcelAdvance.
type NotificationAdvance struct {
	NotificationID  int64
	UserID          int64
	ExpectedNextDue time.Time
	ExpectedTimes   int
	NextDue         time.Time
	Active          bool
	Status          models.MessageStatus
	At              time.Time
}

// Store is the transactional persistence the engine runs on. Reads of
// soft-deleted rows return CodeNotFound errors.
type Store interface {
	// FindDueReminders pages through active CONFIRM notifications with
	// remaining occurrences whose next due date lies in [from, to].
	FindDueReminders(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.Notification, error)
	// FindDueNotifications returns every active notification due at or before now.
	FindDueNotifications(ctx context.Context, now time.Time) ([]*models.Notification, error)
	// FindDueTransactions returns active INFO-linked plans with more than one
	// occurrence whose next due date is at or before now.
	FindDueTransactions(ctx context.Context, now time.Time) ([]*models.Transaction, error)

	GetTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error)
	GetNotification(ctx context.Context, notificationID int64) (*models.Notification, error)
	GetNotificationMessage(ctx context.Context, messageID int64) (*models.NotificationMessage, error)
	FindMessageByExternalID(ctx context.Context, externalID string) (*models.NotificationMessage, error)
	// ListTransactions returns the user's non-deleted transactions with their parcels.
	ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
	RecentMessages(ctx context.Context, userID int64, limit int) ([]*models.NotificationMessage, error)

	MaterializeParcel(ctx context.Context, adv ParcelAdvance) (*models.Parcel, error)
	AdvanceNotification(ctx context.Context, adv NotificationAdvance) (*models.NotificationMessage, error)
	SetMessageExternalID(ctx context.Context, messageID int64, externalID string) error
	// AcceptNotificationMessage moves a PENDING message to ACCEPTED and
	// materializes the next parcel of its notification's transaction in one
	// write, first linking a LinkedTransaction sized by the rejections so far
	// when the notification has none. On any error nothing is written and
	// the message stays PENDING. A message that is no longer PENDING yields
	// a CodeInvalidState error.
	AcceptNotificationMessage(ctx context.Context, messageID int64, at time.Time) (*models.NotificationMessage, *models.Parcel, error)
	// RejectNotificationMessage moves a PENDING message to REJECTED and, when
	// the notification already has a transaction, drops one unused parcel
	// from its plan.
	RejectNotificationMessage(ctx context.Context, messageID int64, at time.Time) (*models.NotificationMessage, error)

	// CreateTransaction inserts tx, plus firstParcel and info when non-nil,
	// and links info to tx.
	CreateTransaction(ctx context.Context, tx *models.Transaction, firstParcel *models.Parcel, info *models.Notification) error
	CreateNotification(ctx context.Context, n *models.Notification) error
	// UpdateNotification persists the editable fields and mirrors the type
	// onto the linked transaction.
	UpdateNotification(ctx context.Context, n *models.Notification) error
	SetNotificationActive(ctx context.Context, notificationID int64, active bool) error
	// SoftDeleteTransaction marks the transaction, its parcels and its INFO
	// notification deleted.
	SoftDeleteTransaction(ctx context.Context, userID, transactionID int64, at time.Time) error
	SoftDeleteNotification(ctx context.Context, userID, notificationID int64, at time.Time) error
}

// Delivery is what a Notifier needs to render and send one reminder.
type Delivery struct {
	UserID       int64
	Notification *models.Notification
	Message      *models.NotificationMessage
}

// Notifier sends reminders over the user's chat channel and returns the
// channel's message id.
type Notifier interface {
	SendReminder(ctx context.Context, d Delivery) (string, error)
	SendConfirmationPrompt(ctx context.Context, d Delivery) (string, error)
}
