package projection

import (
	"sort"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/shopspring/decimal"
)

// DaySummary aggregates the occurrences that fall on one calendar day.
type DaySummary struct {
	Date          string          `json:"date"` // YYYY-MM-DD
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	IncomeCount   int             `json:"income_count"`
	ExpenseCount  int             `json:"expense_count"`
	Balance       decimal.Decimal `json:"balance"`
	ProjectedOnly bool            `json:"projected_only"`
}

// Summary is the income/expense picture of a window, projections included.
type Summary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Income         decimal.Decimal `json:"income"`
	Expense        decimal.Decimal `json:"expense"`
	Balance        decimal.Decimal `json:"balance"`
	ProjectedCount int             `json:"projected_count"`
	ByDay          []DaySummary    `json:"by_day"`
}

// Summarize sums every occurrence, materialized or projected, dated within
// [from, to]. Dates are bucketed into days in loc.
func Summarize(txs []*models.Transaction, from, to time.Time, loc *time.Location) (*Summary, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Summary{From: from, To: to}
	days := make(map[string]*DaySummary)

	for _, tx := range txs {
		if tx.DeletedAt != nil {
			continue
		}
		timeline, err := Timeline(tx, to)
		if err != nil {
			return nil, err
		}

		for _, occ := range timeline {
			at := occ.Date()
			if at.Before(from) || at.After(to) {
				continue
			}

			_, projected := occ.(models.Projected)
			if projected {
				s.ProjectedCount++
			}

			key := at.In(loc).Format("2006-01-02")
			day, ok := days[key]
			if !ok {
				day = &DaySummary{Date: key, ProjectedOnly: true}
				days[key] = day
			}
			if !projected {
				day.ProjectedOnly = false
			}

			switch tx.Type {
			case models.TransactionTypeIncome:
				s.Income = s.Income.Add(occ.Amount())
				day.Income = day.Income.Add(occ.Amount())
				day.IncomeCount++
			case models.TransactionTypeExpense:
				s.Expense = s.Expense.Add(occ.Amount())
				day.Expense = day.Expense.Add(occ.Amount())
				day.ExpenseCount++
			}
			day.Balance = day.Income.Sub(day.Expense)
		}
	}

	s.Balance = s.Income.Sub(s.Expense)
	for _, day := range days {
		s.ByDay = append(s.ByDay, *day)
	}
	sort.Slice(s.ByDay, func(i, j int) bool { return s.ByDay[i].Date < s.ByDay[j].Date })
	return s, nil
}
