package models

import (
	"fmt"
	"time"
)

// Month is a calendar-month bucket. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Index orders months on a single axis; consecutive months differ by one.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) Compare(o Month) int {
	switch a, b := m.Index(), o.Index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	t, err := time.Parse("2006-01", string(b))
	if err != nil {
		return fmt.Errorf("parse month %q: %w", string(b), err)
	}
	*m = MonthOf(t)
	return nil
}
