package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01", true},
		{"1999-12", true},
		{" 2025-06 ", true},
		{"2025-13", false},
		{"2025-00", false},
		{"2025-1", false},
		{"25-01", false},
		{"2025/01", false},
		{"2025-01-01", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseMonth(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidMonth) {
			t.Fatalf("%q expected ErrInvalidMonth, got %v", tc.in, err)
		}
	}
}

func TestMonthNavigation(t *testing.T) {
	m := Month("2024-12")
	if m.Next() != "2025-01" {
		t.Fatalf("next of %s = %s", m, m.Next())
	}
	if Month("2025-01").Prev() != "2024-12" {
		t.Fatalf("prev across year boundary failed")
	}
	if Month("2024-03").Prev() != "2024-02" {
		t.Fatalf("prev failed")
	}
}

func TestMonthOf(t *testing.T) {
	got := MonthOf(time.Date(2025, 7, 31, 23, 59, 0, 0, time.UTC))
	if got != "2025-07" {
		t.Fatalf("unexpected month %s", got)
	}
	if !CurrentMonth().Valid() {
		t.Fatalf("current month should be valid")
	}
}
