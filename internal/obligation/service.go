package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/recurrence"
	"github.com/shopspring/decimal"
)

const recentMessagesLimit = 15

// Service holds the user-facing lifecycle of obligations: creation, edits,
// activation toggles and soft deletion. Input is validated before any
// scheduling state is touched.
type Service struct {
	store Store
	clock Clock
}

func NewService(store Store, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{store: store, clock: clock}
}

// TransactionInput describes a new installment plan. Without FirstDate the
// first parcel is recorded immediately.
type TransactionInput struct {
	Type         models.TransactionType
	Value        decimal.Decimal
	Description  string
	CategoryID   *int
	Interval     models.IntervalKind
	PlannedCount int
	FirstDate    *time.Time
}

// GoalInput describes a future goal: a CONFIRM reminder with no transaction yet.
type GoalInput struct {
	Type          models.TransactionType
	Value         decimal.Decimal
	Description   string
	CategoryID    *int
	Interval      models.IntervalKind
	PlannedCount  int
	ReferenceDate time.Time
}

// NotificationPatch lists the editable fields of a notification. Nil fields
// are left untouched.
type NotificationPatch struct {
	Type          *models.TransactionType
	Value         *decimal.Decimal
	Description   *string
	CategoryID    *int
	PlannedCount  *int
	ReferenceDate *time.Time
}

func validateSchedule(t models.TransactionType, value decimal.Decimal, interval models.IntervalKind, planned int) error {
	if !t.Valid() {
		return ValidationError("unknown transaction type %q", t)
	}
	if value.IsNegative() {
		return ValidationError("value must not be negative, got %s", value)
	}
	if !interval.Valid() {
		return ValidationError("unknown interval %q", interval)
	}
	if planned < 1 {
		return ValidationError("planned count must be at least 1, got %d", planned)
	}
	return nil
}

// CreateTransaction stores a new transaction. Plans with more than one
// occurrence get an INFO notification that drives the remaining parcels.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (*models.Transaction, error) {
	if err := validateSchedule(in.Type, in.Value, in.Interval, in.PlannedCount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tx := &models.Transaction{
		UserID:       userID,
		CategoryID:   in.CategoryID,
		Type:         in.Type,
		Value:        in.Value,
		Description:  in.Description,
		Interval:     in.Interval,
		PlannedCount: in.PlannedCount,
		Active:       true,
	}

	var first *models.Parcel
	if in.FirstDate != nil {
		if in.FirstDate.Before(now) {
			return nil, ValidationError("first date %s is in the past", in.FirstDate.Format(time.RFC3339))
		}
		// Nothing would ever materialize a single future occurrence.
		if in.PlannedCount == 1 {
			return nil, ValidationError("a future first date needs more than one occurrence")
		}
		tx.ReferenceDate = *in.FirstDate
		tx.NextDueDate = *in.FirstDate
	} else {
		next, err := recurrence.NextOccurrence(now, in.Interval)
		if err != nil {
			return nil, ValidationError("unknown interval %q", in.Interval)
		}
		tx.ReferenceDate = now
		tx.NextDueDate = next
		tx.MaterializedCount = 1
		tx.Active = in.PlannedCount > 1
		first = &models.Parcel{
			UserID:    userID,
			Value:     in.Value,
			Count:     1,
			CreatedAt: now,
		}
	}

	var info *models.Notification
	if in.PlannedCount > 1 {
		info = &models.Notification{
			UserID:            userID,
			Purpose:           models.PurposeInfo,
			Type:              in.Type,
			Value:             in.Value,
			Description:       in.Description,
			CategoryID:        in.CategoryID,
			Interval:          in.Interval,
			ReferenceDate:     tx.NextDueDate,
			NextDueDate:       tx.NextDueDate,
			PlannedCount:      in.PlannedCount,
			NotificationTimes: tx.MaterializedCount,
			Active:            tx.Active,
		}
	}

	if err := s.store.CreateTransaction(ctx, tx, first, info); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

// CreateFutureGoal stores a CONFIRM notification starting at in.ReferenceDate.
func (s *Service) CreateFutureGoal(ctx context.Context, userID int64, in GoalInput) (*models.Notification, error) {
	if err := validateSchedule(in.Type, in.Value, in.Interval, in.PlannedCount); err != nil {
		return nil, err
	}
	if in.ReferenceDate.IsZero() {
		return nil, ValidationError("reference date is required")
	}

	n := &models.Notification{
		UserID:        userID,
		Purpose:       models.PurposeConfirm,
		Type:          in.Type,
		Value:         in.Value,
		Description:   in.Description,
		CategoryID:    in.CategoryID,
		Interval:      in.Interval,
		ReferenceDate: in.ReferenceDate,
		NextDueDate:   in.ReferenceDate,
		PlannedCount:  in.PlannedCount,
		Active:        true,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// ownNotification loads a notification and hides it from other users.
func (s *Service) ownNotification(ctx context.Context, userID, notificationID int64) (*models.Notification, error) {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, NotFoundError("notification %d not found", notificationID)
	}
	return n, nil
}

// UpdateNotification applies patch. The planned count cannot drop below what
// has already happened, neither the reminders sent nor the linked
// transaction's parcels.
func (s *Service) UpdateNotification(ctx context.Context, userID, notificationID int64, patch NotificationPatch) (*models.Notification, error) {
	n, err := s.ownNotification(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}

	if patch.Type != nil && !patch.Type.Valid() {
		return nil, ValidationError("unknown transaction type %q", *patch.Type)
	}
	if patch.Value != nil && patch.Value.IsNegative() {
		return nil, ValidationError("value must not be negative, got %s", *patch.Value)
	}
	if patch.PlannedCount != nil {
		planned := *patch.PlannedCount
		if planned < 1 || planned < n.NotificationTimes {
			return nil, ValidationError("planned count %d is below the %d reminders already sent",
				planned, n.NotificationTimes)
		}
		if n.TransactionID != nil {
			tx, err := s.store.GetTransaction(ctx, *n.TransactionID)
			if err != nil && !IsNotFound(err) {
				return nil, fmt.Errorf("load linked transaction: %w", err)
			}
			if tx != nil && planned < tx.MaterializedCount {
				return nil, ValidationError("planned count %d is below the %d parcels already recorded",
					planned, tx.MaterializedCount)
			}
		}
	}

	if patch.Type != nil {
		n.Type = *patch.Type
	}
	if patch.Value != nil {
		n.Value = *patch.Value
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		n.CategoryID = patch.CategoryID
	}
	if patch.ReferenceDate != nil {
		n.ReferenceDate = *patch.ReferenceDate
		n.NextDueDate = *patch.ReferenceDate
	}
	if patch.PlannedCount != nil {
		n.PlannedCount = *patch.PlannedCount
		if n.Exhausted() {
			n.Active = false
		}
	}

	if err := s.store.UpdateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("update notification %d: %w", notificationID, err)
	}
	return n, nil
}

// ToggleNotification flips a notification between active and paused. An
// exhausted notification stays inactive.
func (s *Service) ToggleNotification(ctx context.Context, userID, notificationID int64) (*models.Notification, error) {
	n, err := s.ownNotification(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if n.Exhausted() {
		return nil, ValidationError("notification %d is complete and cannot be reactivated", notificationID)
	}

	n.Active = !n.Active
	if err := s.store.SetNotificationActive(ctx, notificationID, n.Active); err != nil {
		return nil, fmt.Errorf("toggle notification %d: %w", notificationID, err)
	}
	return n, nil
}

// DeleteTransaction soft-deletes a transaction together with its parcels and
// its INFO notification.
func (s *Service) DeleteTransaction(ctx context.Context, userID, transactionID int64) error {
	return s.store.SoftDeleteTransaction(ctx, userID, transactionID, s.clock.Now())
}

func (s *Service) DeleteNotification(ctx context.Context, userID, notificationID int64) error {
	return s.store.SoftDeleteNotification(ctx, userID, notificationID, s.clock.Now())
}

// Balance sums every recorded parcel of the user: income adds, expense subtracts.
func (s *Service) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list transactions: %w", err)
	}

	balance := decimal.Zero
	for _, tx := range txs {
		for _, p := range tx.Parcels {
			if p.DeletedAt != nil {
				continue
			}
			switch tx.Type {
			case models.TransactionTypeIncome:
				balance = balance.Add(p.Value)
			case models.TransactionTypeExpense:
				balance = balance.Sub(p.Value)
			}
		}
	}
	return balance, nil
}

// RecentMessages lists the user's latest reminder messages, newest first.
func (s *Service) RecentMessages(ctx context.Context, userID int64) ([]*models.NotificationMessage, error) {
	return s.store.RecentMessages(ctx, userID, recentMessagesLimit)
}
