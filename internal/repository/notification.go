package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/jackc/pgx/v5"
)

type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `notification_id, user_id, transaction_id, purpose, type, value, description,
	category_id, interval_kind, reference_date, next_due_date, planned_count, notification_times,
	active, deleted_at, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	err := row.Scan(&n.NotificationID, &n.UserID, &n.TransactionID, &n.Purpose, &n.Type, &n.Value,
		&n.Description, &n.CategoryID, &n.Interval, &n.ReferenceDate, &n.NextDueDate, &n.PlannedCount,
		&n.NotificationTimes, &n.Active, &n.DeletedAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, sql string, args ...any) ([]*models.Notification, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) FindDueReminders(ctx context.Context, from, to time.Time, limit, offset int) ([]*models.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE purpose = 'CONFIRM' AND active AND deleted_at IS NULL
		   AND notification_times < planned_count
		   AND next_due_date BETWEEN $1 AND $2
		 ORDER BY notification_id
		 LIMIT $3 OFFSET $4`,
		from, to, limit, offset,
	)
}

func (r *NotificationRepository) FindDueNotifications(ctx context.Context, now time.Time) ([]*models.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE active AND deleted_at IS NULL AND next_due_date <= $1
		 ORDER BY notification_id`,
		now,
	)
}

func (r *NotificationRepository) GetNotification(ctx context.Context, notificationID int64) (*models.Notification, error) {
	n, err := scanNotification(r.db.Pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE notification_id = $1 AND deleted_at IS NULL`,
		notificationID,
	))
	if err != nil {
		return nil, notFound(err, "notification %d not found", notificationID)
	}
	return n, nil
}

// AdvanceNotification steps the schedule and records the reminder message
// in one database transaction, guarded by the schedule the caller read.
func (r *NotificationRepository) AdvanceNotification(ctx context.Context, adv obligation.NotificationAdvance) (*models.NotificationMessage, error) {
	msg := &models.NotificationMessage{
		NotificationID: adv.NotificationID,
		UserID:         adv.UserID,
		Status:         adv.Status,
		CreatedAt:      adv.At,
	}
	if adv.Status.Terminal() {
		at := adv.At
		msg.ResolvedAt = &at
	}

	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE notifications
			 SET next_due_date = $1, notification_times = notification_times + 1, active = $2
			 WHERE notification_id = $3 AND deleted_at IS NULL
			   AND next_due_date = $4 AND notification_times = $5
			 RETURNING purpose, description`,
			adv.NextDue, adv.Active, adv.NotificationID, adv.ExpectedNextDue, adv.ExpectedTimes,
		).Scan(&msg.Purpose, &msg.Description)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM notifications WHERE notification_id = $1 AND deleted_at IS NULL)`,
				adv.NotificationID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return obligation.NotFoundError("notification %d not found", adv.NotificationID)
			}
			return obligation.ConflictError("notification %d schedule changed", adv.NotificationID)
		}
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx,
			`INSERT INTO notification_messages (notification_id, user_id, status, created_at, resolved_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING message_id`,
			msg.NotificationID, msg.UserID, msg.Status, msg.CreatedAt, msg.ResolvedAt,
		).Scan(&msg.MessageID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func insertNotification(ctx context.Context, q pgx.Tx, n *models.Notification) error {
	return q.QueryRow(ctx,
		`INSERT INTO notifications (user_id, transaction_id, purpose, type, value, description, category_id,
		 interval_kind, reference_date, next_due_date, planned_count, notification_times, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING notification_id, created_at`,
		n.UserID, n.TransactionID, n.Purpose, n.Type, n.Value, n.Description, n.CategoryID,
		n.Interval, n.ReferenceDate, n.NextDueDate, n.PlannedCount, n.NotificationTimes, n.Active,
	).Scan(&n.NotificationID, &n.CreatedAt)
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return insertNotification(ctx, tx, n)
	})
}

// UpdateNotification saves the editable fields and copies the type onto
// the linked transaction.
func (r *NotificationRepository) UpdateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE notifications
			 SET type = $1, value = $2, description = $3, category_id = $4, reference_date = $5,
			     next_due_date = $6, planned_count = $7, active = $8
			 WHERE notification_id = $9 AND deleted_at IS NULL`,
			n.Type, n.Value, n.Description, n.CategoryID, n.ReferenceDate,
			n.NextDueDate, n.PlannedCount, n.Active, n.NotificationID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return obligation.NotFoundError("notification %d not found", n.NotificationID)
		}
		if n.TransactionID == nil {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE transactions SET type = $1 WHERE transaction_id = $2`,
			n.Type, *n.TransactionID,
		)
		return err
	})
}

func (r *NotificationRepository) SetNotificationActive(ctx context.Context, notificationID int64, active bool) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET active = $1 WHERE notification_id = $2 AND deleted_at IS NULL`,
		active, notificationID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return obligation.NotFoundError("notification %d not found", notificationID)
	}
	return nil
}

func (r *NotificationRepository) SoftDeleteNotification(ctx context.Context, userID, notificationID int64, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET deleted_at = $1, active = FALSE
		 WHERE notification_id = $2 AND user_id = $3 AND deleted_at IS NULL`,
		at, notificationID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return obligation.NotFoundError("notification %d not found", notificationID)
	}
	return nil
}
