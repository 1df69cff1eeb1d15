package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "02/01/2006"

var intervalWords = map[string]models.IntervalKind{
	"diario":  models.IntervalDaily,
	"diário":  models.IntervalDaily,
	"semanal": models.IntervalWeekly,
	"mensal":  models.IntervalMonthly,
	"anual":   models.IntervalYearly,
}

// entry is a parsed /gasto, /ganho or /meta argument list.
type entry struct {
	Value       decimal.Decimal
	Count       int
	Interval    models.IntervalKind
	Date        *time.Time
	Description string
}

// parseAmount accepts "1234,50", "1.234,50" and "1234.50".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "R$")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("valor inválido %q", s)
	}
	if v.IsNegative() {
		return decimal.Zero, errors.New("o valor não pode ser negativo")
	}
	return v, nil
}

// parseCount reads an installment count such as "12x".
func parseCount(s string) (int, bool) {
	lower := strings.ToLower(s)
	if !strings.HasSuffix(lower, "x") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(lower, "x"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseDate reads dd/mm/yyyy as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseEntry reads "<valor> [opções] <descrição>". Options are an
// installment count, an interval word and a date, in any order, and only
// before the description. requireDate makes the date mandatory right after
// the value.
func parseEntry(args string, requireDate bool, loc *time.Location) (*entry, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, errors.New("informe o valor")
	}

	value, err := parseAmount(fields[0])
	if err != nil {
		return nil, err
	}
	e := &entry{Value: value, Count: 1, Interval: models.IntervalMonthly}
	rest := fields[1:]

	if requireDate {
		if len(rest) == 0 {
			return nil, errors.New("informe a data no formato dd/mm/aaaa")
		}
		d, ok := parseDate(rest[0], loc)
		if !ok {
			return nil, fmt.Errorf("data inválida %q, use dd/mm/aaaa", rest[0])
		}
		e.Date = &d
		rest = rest[1:]
	}

	for len(rest) > 0 {
		tok := rest[0]
		if n, ok := parseCount(tok); ok {
			e.Count = n
		} else if kind, ok := intervalWords[strings.ToLower(tok)]; ok {
			e.Interval = kind
		} else if d, ok := parseDate(tok, loc); ok && e.Date == nil {
			e.Date = &d
		} else {
			break
		}
		rest = rest[1:]
	}

	e.Description = strings.Join(rest, " ")
	if e.Description == "" {
		return nil, errors.New("informe uma descrição")
	}
	return e, nil
}

func parseID(args string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
