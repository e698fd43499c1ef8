package utils

import "time"

// StartOfDay returns local midnight for the day containing t. Daily
// correction quotas are counted from this instant.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// WindowStart returns the beginning of a rolling window of the given
// length ending at t. Used for the 1-hour deduplication window and the
// statistics period.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.Add(-window)
}
