package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/jackc/pgx/v5"
)

type TransactionRepository struct {
	db *database.DB
}

func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// transactionSelect joins the live notification driving the transaction,
// preferring the INFO one.
const transactionSelect = `
	SELECT t.transaction_id, t.user_id, t.category_id, t.type, t.value, t.description, t.interval_kind,
	       t.reference_date, t.next_due_date, t.planned_count, t.materialized_count, t.active,
	       t.deleted_at, t.created_at, n.notification_id, n.purpose
	FROM transactions t
	LEFT JOIN LATERAL (
		SELECT notification_id, purpose FROM notifications
		WHERE transaction_id = t.transaction_id AND deleted_at IS NULL
		ORDER BY (purpose = 'INFO') DESC, notification_id
		LIMIT 1
	) n ON TRUE`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(&tx.TransactionID, &tx.UserID, &tx.CategoryID, &tx.Type, &tx.Value, &tx.Description,
		&tx.Interval, &tx.ReferenceDate, &tx.NextDueDate, &tx.PlannedCount, &tx.MaterializedCount, &tx.Active,
		&tx.DeletedAt, &tx.CreatedAt, &tx.NotificationID, &tx.NotificationPurpose)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, sql string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *TransactionRepository) FindDueTransactions(ctx context.Context, now time.Time) ([]*models.Transaction, error) {
	return r.queryTransactions(ctx, transactionSelect+`
		WHERE t.active AND t.deleted_at IS NULL AND t.planned_count > 1
		  AND n.purpose = 'INFO' AND t.next_due_date <= $1
		ORDER BY t.transaction_id`,
		now,
	)
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	tx, err := scanTransaction(r.db.Pool.QueryRow(ctx,
		transactionSelect+` WHERE t.transaction_id = $1 AND t.deleted_at IS NULL`,
		transactionID,
	))
	if err != nil {
		return nil, notFound(err, "transaction %d not found", transactionID)
	}
	return tx, nil
}

// ListTransactions returns the user's live transactions with their live parcels.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	txs, err := r.queryTransactions(ctx, transactionSelect+`
		WHERE t.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.transaction_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Transaction, len(txs))
	for _, tx := range txs {
		byID[tx.TransactionID] = tx
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT p.parcel_id, p.transaction_id, p.user_id, p.notification_id, p.value, p.count, p.created_at, p.deleted_at
		 FROM parcels p JOIN transactions t ON t.transaction_id = p.transaction_id
		 WHERE p.user_id = $1 AND p.deleted_at IS NULL AND t.deleted_at IS NULL
		 ORDER BY p.transaction_id, p.count`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p := &models.Parcel{}
		if err := rows.Scan(&p.ParcelID, &p.TransactionID, &p.UserID, &p.NotificationID, &p.Value,
			&p.Count, &p.CreatedAt, &p.DeletedAt); err != nil {
			return nil, err
		}
		if tx, ok := byID[p.TransactionID]; ok {
			tx.Parcels = append(tx.Parcels, p)
		}
	}
	return txs, rows.Err()
}

func insertParcel(ctx context.Context, q pgx.Tx, p *models.Parcel) error {
	return q.QueryRow(ctx,
		`INSERT INTO parcels (transaction_id, user_id, notification_id, value, count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING parcel_id`,
		p.TransactionID, p.UserID, p.NotificationID, p.Value, p.Count, p.CreatedAt,
	).Scan(&p.ParcelID)
}

// MaterializeParcel advances the transaction only if its schedule still
// matches what the caller read, and records the parcel in the same transaction.
func (r *TransactionRepository) MaterializeParcel(ctx context.Context, adv obligation.ParcelAdvance) (*models.Parcel, error) {
	var p *models.Parcel
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = materializeParcel(ctx, tx, adv)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func materializeParcel(ctx context.Context, tx pgx.Tx, adv obligation.ParcelAdvance) (*models.Parcel, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE transactions
		 SET next_due_date = $1, materialized_count = materialized_count + 1, active = $2
		 WHERE transaction_id = $3 AND deleted_at IS NULL
		   AND next_due_date = $4 AND materialized_count = $5`,
		adv.NextDue, adv.Active, adv.TransactionID, adv.ExpectedNextDue, adv.ExpectedCount,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, missOrConflict(ctx, tx, adv.TransactionID)
	}

	p := &models.Parcel{
		TransactionID:  adv.TransactionID,
		UserID:         adv.UserID,
		NotificationID: adv.NotificationID,
		Value:          adv.Value,
		Count:          adv.ExpectedCount + 1,
		CreatedAt:      adv.At,
	}
	if err := insertParcel(ctx, tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func missOrConflict(ctx context.Context, tx pgx.Tx, transactionID int64) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_id = $1 AND deleted_at IS NULL)`,
		transactionID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return obligation.NotFoundError("transaction %d not found", transactionID)
	}
	return obligation.ConflictError("transaction %d schedule changed", transactionID)
}

func insertTransaction(ctx context.Context, q pgx.Tx, t *models.Transaction) error {
	return q.QueryRow(ctx,
		`INSERT INTO transactions (user_id, category_id, type, value, description, interval_kind,
		 reference_date, next_due_date, planned_count, materialized_count, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING transaction_id, created_at`,
		t.UserID, t.CategoryID, t.Type, t.Value, t.Description, t.Interval,
		t.ReferenceDate, t.NextDueDate, t.PlannedCount, t.MaterializedCount, t.Active,
	).Scan(&t.TransactionID, &t.CreatedAt)
}

// CreateTransaction inserts the transaction, its INFO notification and its
// first parcel in one database transaction.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, t *models.Transaction, firstParcel *models.Parcel, info *models.Notification) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if t.CategoryID != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE category SET usage_count = usage_count + 1 WHERE category_id = $1 AND user_id = $2`,
				*t.CategoryID, t.UserID,
			); err != nil {
				return fmt.Errorf("bump category usage: %w", err)
			}
		}

		if info != nil {
			txID := t.TransactionID
			info.TransactionID = &txID
			if err := insertNotification(ctx, tx, info); err != nil {
				return fmt.Errorf("insert info notification: %w", err)
			}
			id, purpose := info.NotificationID, info.Purpose
			t.NotificationID = &id
			t.NotificationPurpose = &purpose
		}

		if firstParcel != nil {
			firstParcel.TransactionID = t.TransactionID
			firstParcel.NotificationID = t.NotificationID
			if err := insertParcel(ctx, tx, firstParcel); err != nil {
				return fmt.Errorf("insert first parcel: %w", err)
			}
			t.Parcels = []*models.Parcel{firstParcel}
		}
		return nil
	})
}

// SoftDeleteTransaction marks the transaction, its parcels and its INFO
// notification deleted at the same instant.
func (r *TransactionRepository) SoftDeleteTransaction(ctx context.Context, userID, transactionID int64, at time.Time) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE transactions SET deleted_at = $1, active = FALSE
			 WHERE transaction_id = $2 AND user_id = $3 AND deleted_at IS NULL`,
			at, transactionID, userID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return obligation.NotFoundError("transaction %d not found", transactionID)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE parcels SET deleted_at = $1 WHERE transaction_id = $2 AND deleted_at IS NULL`,
			at, transactionID,
		); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE notifications SET deleted_at = $1
			 WHERE transaction_id = $2 AND purpose = 'INFO' AND deleted_at IS NULL`,
			at, transactionID,
		)
		return err
	})
}
