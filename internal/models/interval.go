package models

// IntervalKind is the step between two occurrences of an obligation.
type IntervalKind string

const (
	IntervalDaily   IntervalKind = "DAILY"
	IntervalWeekly  IntervalKind = "WEEKLY"
	IntervalMonthly IntervalKind = "MONTHLY"
	IntervalYearly  IntervalKind = "YEARLY"
)

// Intervals lists every supported interval kind.
var Intervals = []IntervalKind{IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly}

// Valid reports whether k is one of Intervals.
func (k IntervalKind) Valid() bool {
	switch k {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalYearly:
		return true
	default:
		return false
	}
}
