package common

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the ISO calendar-day layout used in files and on the wire.
const DateFormat = "2006-01-02"

// Day normalises t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day at midnight UTC.
func Today() time.Time {
	return Day(time.Now())
}

// ParseDate parses "2006-01-02", "20060102" or "2006-01-02T15:04:05" into a calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateFormat, "20060102", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want format %s", s, DateFormat)
}

// FormatDate formats a calendar day, returning "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateFormat)
}

// CalendarDays produces one date per day from start to end (inclusive).
func CalendarDays(start, end time.Time) []time.Time {
	start = Day(start)
	end = Day(end)

	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// MinDate returns the earlier of two days, ignoring zero values.
func MinDate(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of two days, ignoring zero values.
func MaxDate(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.After(b) {
		return a
	}
	return b
}
