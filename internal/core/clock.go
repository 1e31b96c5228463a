// AngelaMos | 2026
// clock.go

package core

import "time"

// Clock returns the current time. Services take one so tests can pin "today".
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// Day truncates t to midnight UTC, the boundary used for daily assignments.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
