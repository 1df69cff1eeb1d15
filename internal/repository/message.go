package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// messageSelect only sees messages of live notifications.
const messageSelect = `
	SELECT m.message_id, m.notification_id, m.user_id, m.external_id, m.status, m.created_at,
	       m.resolved_at, n.purpose, n.description
	FROM notification_messages m
	JOIN notifications n ON n.notification_id = m.notification_id AND n.deleted_at IS NULL`

func scanMessage(row rowScanner) (*models.NotificationMessage, error) {
	m := &models.NotificationMessage{}
	err := row.Scan(&m.MessageID, &m.NotificationID, &m.UserID, &m.ExternalID, &m.Status, &m.CreatedAt,
		&m.ResolvedAt, &m.Purpose, &m.Description)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) GetNotificationMessage(ctx context.Context, messageID int64) (*models.NotificationMessage, error) {
	m, err := scanMessage(r.db.Pool.QueryRow(ctx, messageSelect+` WHERE m.message_id = $1`, messageID))
	if err != nil {
		return nil, notFound(err, "message %d not found", messageID)
	}
	return m, nil
}

func (r *MessageRepository) FindMessageByExternalID(ctx context.Context, externalID string) (*models.NotificationMessage, error) {
	m, err := scanMessage(r.db.Pool.QueryRow(ctx,
		messageSelect+` WHERE m.external_id = $1 AND m.external_id <> '' ORDER BY m.message_id DESC LIMIT 1`,
		externalID,
	))
	if err != nil {
		return nil, notFound(err, "message with external id %q not found", externalID)
	}
	return m, nil
}

func (r *MessageRepository) SetMessageExternalID(ctx context.Context, messageID int64, externalID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE notification_messages SET external_id = $1 WHERE message_id = $2`,
		externalID, messageID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return obligation.NotFoundError("message %d not found", messageID)
	}
	return nil
}

// lockPending locks a message that can still be answered, so of two
// concurrent answers exactly one wins.
func lockPending(ctx context.Context, tx pgx.Tx, messageID int64) (*models.NotificationMessage, error) {
	m, err := scanMessage(tx.QueryRow(ctx, messageSelect+` WHERE m.message_id = $1 FOR UPDATE OF m`, messageID))
	if err != nil {
		return nil, notFound(err, "message %d not found", messageID)
	}
	if m.Status.Terminal() {
		return nil, obligation.InvalidStateError("message %d is already %s", messageID, m.Status)
	}
	return m, nil
}

func resolveMessage(ctx context.Context, tx pgx.Tx, m *models.NotificationMessage, status models.MessageStatus, at time.Time) error {
	err := tx.QueryRow(ctx,
		`UPDATE notification_messages SET status = $1, resolved_at = $2
		 WHERE message_id = $3 AND status = 'PENDING'
		 RETURNING status, resolved_at`,
		status, at, m.MessageID,
	).Scan(&m.Status, &m.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return obligation.InvalidStateError("message %d is no longer pending", m.MessageID)
	}
	return err
}

// AcceptNotificationMessage resolves the message, links the notification's
// transaction when needed and records the parcel in one database
// transaction. The notification row is locked before the link so two
// acceptances racing on an unlinked goal create a single transaction.
func (r *MessageRepository) AcceptNotificationMessage(ctx context.Context, messageID int64, at time.Time) (*models.NotificationMessage, *models.Parcel, error) {
	var (
		accepted *models.NotificationMessage
		parcel   *models.Parcel
	)
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		m, err := lockPending(ctx, tx, messageID)
		if err != nil {
			return err
		}

		n, err := scanNotification(tx.QueryRow(ctx,
			`SELECT `+notificationColumns+` FROM notifications
			 WHERE notification_id = $1 AND deleted_at IS NULL
			 FOR UPDATE`,
			m.NotificationID,
		))
		if err != nil {
			return notFound(err, "notification %d not found", m.NotificationID)
		}

		t, err := linkedTransaction(ctx, tx, n, at)
		if err != nil {
			return err
		}

		adv, err := obligation.NextParcel(t, at)
		if err != nil {
			return err
		}
		if parcel, err = materializeParcel(ctx, tx, adv); err != nil {
			return fmt.Errorf("materialize parcel %d of transaction %d: %w", adv.ExpectedCount+1, t.TransactionID, err)
		}

		if err := resolveMessage(ctx, tx, m, models.MessageStatusAccepted, at); err != nil {
			return err
		}
		accepted = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return accepted, parcel, nil
}

// linkedTransaction locks the notification's transaction, inserting and
// linking a new one first when there is none.
func linkedTransaction(ctx context.Context, tx pgx.Tx, n *models.Notification, at time.Time) (*models.Transaction, error) {
	if n.TransactionID != nil {
		t, err := scanTransaction(tx.QueryRow(ctx,
			transactionSelect+` WHERE t.transaction_id = $1 AND t.deleted_at IS NULL FOR UPDATE OF t`,
			*n.TransactionID,
		))
		if err != nil {
			return nil, notFound(err, "transaction %d not found", *n.TransactionID)
		}
		return t, nil
	}

	var rejected int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM notification_messages WHERE notification_id = $1 AND status = 'REJECTED'`,
		n.NotificationID,
	).Scan(&rejected); err != nil {
		return nil, err
	}

	t := obligation.LinkedTransaction(n, rejected, at)
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE notifications SET transaction_id = $1 WHERE notification_id = $2`,
		t.TransactionID, n.NotificationID,
	); err != nil {
		return nil, fmt.Errorf("link transaction: %w", err)
	}
	return t, nil
}

// RejectNotificationMessage resolves the message and releases its slot in
// the linked transaction's plan, if any.
func (r *MessageRepository) RejectNotificationMessage(ctx context.Context, messageID int64, at time.Time) (*models.NotificationMessage, error) {
	var rejected *models.NotificationMessage
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		m, err := lockPending(ctx, tx, messageID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE transactions t
			 SET planned_count = t.planned_count - 1, active = t.planned_count - 1 > t.materialized_count
			 FROM notifications n
			 WHERE n.notification_id = $1 AND t.transaction_id = n.transaction_id
			   AND t.deleted_at IS NULL AND t.planned_count > t.materialized_count`,
			m.NotificationID,
		); err != nil {
			return fmt.Errorf("shrink linked transaction: %w", err)
		}

		if err := resolveMessage(ctx, tx, m, models.MessageStatusRejected, at); err != nil {
			return err
		}
		rejected = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// RecentMessages lists messages of the user's active notifications, newest first.
func (r *MessageRepository) RecentMessages(ctx context.Context, userID int64, limit int) ([]*models.NotificationMessage, error) {
	rows, err := r.db.Pool.Query(ctx,
		messageSelect+` WHERE m.user_id = $1 AND n.active
		 ORDER BY m.created_at DESC, m.message_id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.NotificationMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
