package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Purpose string

const (
	// PurposeConfirm is a standalone future goal; each occurrence asks the user to confirm.
	PurposeConfirm Purpose = "CONFIRM"
	// PurposeInfo mirrors the schedule of a linked transaction and is auto-acknowledged.
	PurposeInfo Purpose = "INFO"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeConfirm, PurposeInfo:
		return true
	default:
		return false
	}
}

type MessageStatus string

const (
	MessageStatusPending  MessageStatus = "PENDING"
	MessageStatusAccepted MessageStatus = "ACCEPTED"
	MessageStatusRejected MessageStatus = "REJECTED"
)

// Terminal reports whether a message in this status can no longer be resolved.
func (s MessageStatus) Terminal() bool {
	return s != MessageStatusPending
}

// Notification is a recurring reminder.
type Notification struct {
	NotificationID    int64           `json:"notification_id"`
	UserID            int64           `json:"user_id"`
	TransactionID     *int64          `json:"transaction_id"`
	Purpose           Purpose         `json:"purpose"`
	Type              TransactionType `json:"type"`
	Value             decimal.Decimal `json:"value"`
	Description       string          `json:"description"`
	CategoryID        *int            `json:"category_id"`
	Interval          IntervalKind    `json:"interval"`
	ReferenceDate     time.Time       `json:"reference_date"`
	NextDueDate       time.Time       `json:"next_due_date"`
	PlannedCount      int             `json:"planned_count"`
	NotificationTimes int             `json:"notification_times"` // reminder messages materialized so far
	Active            bool            `json:"active"`
	DeletedAt         *time.Time      `json:"deleted_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Remaining returns how many reminder occurrences are still to be sent.
func (n *Notification) Remaining() int {
	if r := n.PlannedCount - n.NotificationTimes; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether every planned reminder has been sent.
func (n *Notification) Exhausted() bool {
	return n.NotificationTimes >= n.PlannedCount
}

// NotificationMessage is one delivered reminder instance.
type NotificationMessage struct {
	MessageID      int64         `json:"message_id"`
	NotificationID int64         `json:"notification_id"`
	UserID         int64         `json:"user_id"`
	ExternalID     string        `json:"external_id"` // delivery-channel id, empty until delivered
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at"`

	// Populated on listing reads.
	Purpose     Purpose `json:"purpose,omitempty"`
	Description string  `json:"description,omitempty"`
}
