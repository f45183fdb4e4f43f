package datetime

import (
	"testing"
	"time"
)

func TestMustParseTime(t *testing.T) {
	result := MustParseTime(DateLayout, "2025-01-15")
	if result.Format(DateLayout) != "2025-01-15" {
		t.Errorf("MustParseTime() = %s, expected 2025-01-15", result.Format(DateLayout))
	}
}

func TestMustParseTimePanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected MustParseTime to panic with invalid date")
		}
	}()

	MustParseTime(DateLayout, "invalid-date")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Plain date", "2024-01-15", "2024-01-15", false},
		{"Surrounding whitespace", " 2024-01-15 ", "2024-01-15", false},
		{"RFC3339 timestamp", "2024-03-05T22:10:00Z", "2024-03-05", false},
		{"Display format rejected", "15/01/2024", "", true},
		{"Empty rejected", "", "", true},
		{"Invalid day", "2024-02-30", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error but got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if result.Format(DateLayout) != tt.expected {
				t.Errorf("ParseDate(%q) = %s, expected %s", tt.input, result.Format(DateLayout), tt.expected)
			}
		})
	}
}

func TestParseOptionalDate(t *testing.T) {
	result, err := ParseOptionalDate("  ")
	if err != nil {
		t.Fatalf("ParseOptionalDate() error = %v", err)
	}
	if !result.IsZero() {
		t.Errorf("expected zero time for blank input, got %v", result)
	}
}

func TestFormatters(t *testing.T) {
	d := MustDate("2024-02-10")
	if got := FormatDate(d); got != "2024-02-10" {
		t.Errorf("FormatDate() = %s", got)
	}
	if got := FormatDisplay(d); got != "10/02/2024" {
		t.Errorf("FormatDisplay() = %s", got)
	}
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("FormatDate(zero) = %q, expected empty", got)
	}
	if got := FormatDisplay(time.Time{}); got != "-" {
		t.Errorf("FormatDisplay(zero) = %q, expected -", got)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		months   int
		expected string
	}{
		{"Same day next month", "2024-01-15", 1, "2024-02-15"},
		{"Cross year boundary", "2024-11-20", 3, "2025-02-20"},
		{"Zero months", "2024-06-01", 0, "2024-06-01"},
		{"Jan 31 in a leap year overflows to March 2", "2024-01-31", 1, "2024-03-02"},
		{"Jan 31 in a common year overflows to March 3", "2023-01-31", 1, "2023-03-03"},
		{"Mar 31 to April overflows to May 1", "2024-03-31", 1, "2024-05-01"},
		{"Negative months", "2024-03-15", -2, "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AddMonths(MustDate(tt.start), tt.months)
			if result.Format(DateLayout) != tt.expected {
				t.Errorf("AddMonths(%s, %d) = %s, expected %s", tt.start, tt.months, result.Format(DateLayout), tt.expected)
			}
		})
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year     int
		month    time.Month
		expected int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}

	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.expected {
			t.Errorf("DaysInMonth(%d, %s) = %d, expected %d", tt.year, tt.month, got, tt.expected)
		}
	}
}

func TestClampedDate(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		month    time.Month
		day      int
		expected string
	}{
		{"Valid day untouched", 2024, time.January, 10, "2024-01-10"},
		{"Day 31 in April", 2024, time.April, 31, "2024-04-30"},
		{"Day 31 in leap February", 2024, time.February, 31, "2024-02-29"},
		{"Month overflow normalized first", 2024, time.Month(13), 31, "2025-01-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClampedDate(tt.year, tt.month, tt.day)
			if result.Format(DateLayout) != tt.expected {
				t.Errorf("ClampedDate() = %s, expected %s", result.Format(DateLayout), tt.expected)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	if got := DaysBetween(MustDate("2024-01-05"), MustDate("2024-01-10")); got != 5 {
		t.Errorf("DaysBetween() = %d, expected 5", got)
	}
	if got := DaysBetween(MustDate("2024-02-25"), MustDate("2024-03-01")); got != 5 {
		t.Errorf("DaysBetween() across leap February = %d, expected 5", got)
	}
	if got := DaysBetween(MustDate("2024-01-10"), MustDate("2024-01-05")); got != -5 {
		t.Errorf("DaysBetween() reversed = %d, expected -5", got)
	}
}
