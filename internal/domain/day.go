package domain

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-date format used for vote days.
const DayLayout = "2006-01-02"

// DayOf returns the UTC calendar date of t. Every client uses UTC so partners in
// different time zones agree on the day's candidate.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD string into midnight UTC of that date.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

// IsDay reports whether s is a valid calendar date in DayLayout.
func IsDay(s string) bool {
	_, err := ParseDay(s)
	return err == nil
}
