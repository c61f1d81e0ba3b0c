package estimate

import "time"

// PeriodStart returns the start of the accounting period containing now.
// Boundaries are multiples of length counted from midnight UTC, so a 6h
// period starts at 00:00, 06:00, 12:00 and 18:00. A time exactly on a
// boundary belongs to the period starting there.
func PeriodStart(now time.Time, length time.Duration) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	sinceMidnight := now.Sub(midnight)
	start := midnight.Add(sinceMidnight - sinceMidnight%length)
	if start.After(now) {
		start = start.Add(-length)
	}
	return start
}

// PeriodsPerDay returns how many accounting periods fit in a day
func PeriodsPerDay(length time.Duration) float64 {
	return float64(24*time.Hour) / float64(length)
}

// DayFraction returns the share of a day covered by d
func DayFraction(d time.Duration) float64 {
	return float64(d) / float64(24*time.Hour)
}
