// Package datetime provides date and time utility functions.
//
// All ledger dates are calendar days: a time.Time at midnight UTC. Keeping
// every value in UTC makes day differences exact and lets month arithmetic
// follow time.AddDate normalization.
package datetime

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/installment-ledger/pkg/constants"
)

const (
	// DateLayout is the format used in storage and in date parameters.
	DateLayout = constants.DateLayout

	// DisplayLayout is the pt-BR display format.
	DisplayLayout = constants.DisplayDateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// MustDate parses a YYYY-MM-DD date and panics on error.
func MustDate(dateStr string) time.Time {
	return MustParseTime(DateLayout, dateStr)
}

// ParseDate parses a YYYY-MM-DD date. Full timestamps are accepted and
// truncated to their calendar day.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return Day(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected format YYYY-MM-DD", value)
}

// ParseOptionalDate is ParseDate that maps an empty string to the zero time.
func ParseOptionalDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return ParseDate(value)
}

// Day returns the calendar day of t as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a date as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatDisplay formats a date as DD/MM/YYYY, or "-" for the zero time.
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return constants.NoCardName
	}
	return t.Format(DisplayLayout)
}

// AddMonths advances t by the given number of months. Days past the end of
// the target month overflow into the following month (Jan 31 + 1 month is
// Mar 2 or Mar 3).
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds year/month/day with day clamped to the month's last day.
func ClampedDate(year int, month time.Month, day int) time.Time {
	// Normalize month overflow first so DaysInMonth sees a real month.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := DaysInMonth(first.Year(), first.Month())
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
