package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
)

const DefaultPageSize = 100

// Scanner enumerates the obligations that need action at a given instant.
// It never writes.
type Scanner struct {
	store    Store
	pageSize int
}

func NewScanner(store Store, pageSize int) *Scanner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Scanner{store: store, pageSize: pageSize}
}

// DueSet is the result of one scan.
type DueSet struct {
	// Reminders are CONFIRM notifications due within the current minute.
	Reminders []*models.Notification
	// Notifications are the remaining due notifications (overdue ones and
	// INFO), excluding anything already in Reminders.
	Notifications []*models.Notification
	Transactions  []*models.Transaction
}

// Scan collects everything due at now.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (*DueSet, error) {
	reminders, err := s.DueReminders(ctx, now)
	if err != nil {
		return nil, err
	}

	all, err := s.DueNotifications(ctx, now)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(reminders))
	for _, n := range reminders {
		seen[n.NotificationID] = struct{}{}
	}
	var rest []*models.Notification
	for _, n := range all {
		if _, ok := seen[n.NotificationID]; ok {
			continue
		}
		seen[n.NotificationID] = struct{}{}
		rest = append(rest, n)
	}

	txs, err := s.DueTransactions(ctx, now)
	if err != nil {
		return nil, err
	}

	return &DueSet{Reminders: reminders, Notifications: rest, Transactions: txs}, nil
}

// DueReminders pages through CONFIRM notifications due within now's minute
// until a page comes back short.
func (s *Scanner) DueReminders(ctx context.Context, now time.Time) ([]*models.Notification, error) {
	from, to := MinuteWindow(now)

	var due []*models.Notification
	for offset := 0; ; offset += s.pageSize {
		page, err := s.store.FindDueReminders(ctx, from, to, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("find due reminders (offset %d): %w", offset, err)
		}
		due = append(due, page...)
		if len(page) < s.pageSize {
			return due, nil
		}
	}
}

func (s *Scanner) DueNotifications(ctx context.Context, now time.Time) ([]*models.Notification, error) {
	due, err := s.store.FindDueNotifications(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find due notifications: %w", err)
	}
	return due, nil
}

func (s *Scanner) DueTransactions(ctx context.Context, now time.Time) ([]*models.Transaction, error) {
	due, err := s.store.FindDueTransactions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find due transactions: %w", err)
	}
	return due, nil
}

// MinuteWindow returns the inclusive bounds of the minute containing t.
func MinuteWindow(t time.Time) (time.Time, time.Time) {
	from := t.Truncate(time.Minute)
	return from, from.Add(time.Minute - time.Nanosecond)
}
