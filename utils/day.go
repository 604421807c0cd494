// utils/day.go
package utils

import "time"

// StartOfDayUTC truncates t to midnight of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBefore returns midnight UTC n calendar days before the day of t.
func DaysBefore(t time.Time, n int) time.Time {
	return StartOfDayUTC(t).AddDate(0, 0, -n)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar day.
func SameDayUTC(a, b time.Time) bool {
	return StartOfDayUTC(a).Equal(StartOfDayUTC(b))
}
