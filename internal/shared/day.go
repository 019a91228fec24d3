package shared

import "time"

// DayFormat is the canonical calendar-day key used for all day-scoped queries.
const DayFormat = "2006-01-02"

// Day truncates t to its calendar day in UTC. All day-scoped records are
// stored and queried with this key; no time-of-day component survives.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders the canonical day key.
func FormatDay(t time.Time) string {
	return Day(t).Format(DayFormat)
}

// ParseDay parses a canonical day key.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayFormat, s, time.UTC)
}
