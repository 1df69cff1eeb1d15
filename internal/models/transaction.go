package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeExpense TransactionType = "GASTO"
	TransactionTypeIncome  TransactionType = "GANHO"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome:
		return true
	default:
		return false
	}
}

// Transaction is an installment plan. Each materialized installment is a Parcel.
type Transaction struct {
	TransactionID     int64           `json:"transaction_id"`
	UserID            int64           `json:"user_id"`
	CategoryID        *int            `json:"category_id"`
	Type              TransactionType `json:"type"`
	Value             decimal.Decimal `json:"value"`
	Description       string          `json:"description"`
	Interval          IntervalKind    `json:"interval"`
	ReferenceDate     time.Time       `json:"reference_date"`
	NextDueDate       time.Time       `json:"next_due_date"`
	PlannedCount      int             `json:"planned_count"`
	MaterializedCount int             `json:"materialized_count"`
	Active            bool            `json:"active"`
	DeletedAt         *time.Time      `json:"deleted_at"`
	CreatedAt         time.Time       `json:"created_at"`

	// Linked notification, if any. Populated on reads.
	NotificationID      *int64   `json:"notification_id"`
	NotificationPurpose *Purpose `json:"notification_purpose"`

	Parcels []*Parcel `json:"parcels,omitempty"`
}

// Remaining returns how many occurrences are still to be materialized.
func (t *Transaction) Remaining() int {
	if r := t.PlannedCount - t.MaterializedCount; r > 0 {
		return r
	}
	return 0
}

// LinkedToInfo reports whether the transaction's schedule is mirrored by an INFO notification.
func (t *Transaction) LinkedToInfo() bool {
	return t.NotificationPurpose != nil && *t.NotificationPurpose == PurposeInfo
}

// Parcel is one materialized installment of a Transaction.
type Parcel struct {
	ParcelID       int64           `json:"parcel_id"`
	TransactionID  int64           `json:"transaction_id"`
	UserID         int64           `json:"user_id"`
	NotificationID *int64          `json:"notification_id"`
	Value          decimal.Decimal `json:"value"`
	Count          int             `json:"count"` // 1-based position in the plan
	CreatedAt      time.Time       `json:"created_at"`
	DeletedAt      *time.Time      `json:"deleted_at"`
}
