package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Occurrence is one slot of a transaction's schedule: either a persisted
// Parcel (Materialized) or a synthetic, never-stored slot (Projected).
// Consumers branch with a type switch.
type Occurrence interface {
	Position() int
	Date() time.Time
	Amount() decimal.Decimal
	isOccurrence()
}

// Materialized wraps a persisted parcel.
type Materialized struct {
	Parcel *Parcel
}

func (m Materialized) Position() int           { return m.Parcel.Count }
func (m Materialized) Date() time.Time         { return m.Parcel.CreatedAt }
func (m Materialized) Amount() decimal.Decimal { return m.Parcel.Value }
func (Materialized) isOccurrence()             {}

// Projected is a future slot computed on demand. It has no identity and
// must never be written to the store.
type Projected struct {
	TransactionID int64
	Count         int
	DueAt         time.Time
	Value         decimal.Decimal
}

func (p Projected) Position() int           { return p.Count }
func (p Projected) Date() time.Time         { return p.DueAt }
func (p Projected) Amount() decimal.Decimal { return p.Value }
func (Projected) isOccurrence()             {}
