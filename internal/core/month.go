package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const monthLayout = "2006-01"

// Month identifies a budget period as "YYYY-MM".
type Month string

// ParseMonth validates s as a four-digit year and a two-digit month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(monthLayout, s)
	if err != nil || t.Format(monthLayout) != s {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month(s), nil
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month(t.Format(monthLayout))
}

// CurrentMonth returns the month of the local wall clock.
func CurrentMonth() Month {
	return MonthOf(time.Now())
}

func (m Month) String() string {
	return string(m)
}

// Start returns midnight UTC of the first day of the month. An invalid month
// yields the zero time.
func (m Month) Start() time.Time {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

func (m Month) Valid() bool {
	_, err := ParseMonth(string(m))
	return err == nil
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
