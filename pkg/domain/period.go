package domain

import (
	"fmt"
	"time"
)

// Period identifies the calendar month a contribution pays for. It is the
// uniqueness unit of the ledger: one contribution per member per period.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf truncates a time to the month it falls in.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod accepts the "2006-01" form used on the wire.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// Date returns the first-of-month date the period is stored as.
func (p Period) Date() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Next() Period {
	return PeriodOf(p.Date().AddDate(0, 1, 0))
}

func (p Period) String() string {
	return p.Date().Format("2006-01")
}
