package services

import (
	"math"
	"time"
)

// dateLayouts are tried in order when parsing date and scraped_at values.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// maxUnixSeconds bounds created_utc to roughly years 1678-2262.
const maxUnixSeconds = 9.2e9

// parseTimestamp returns the instant in UTC. Values without a zone are read as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromUnixSeconds(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.Abs(f) > maxUnixSeconds {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns whole days from date to at, rounded down.
func daysBetween(date, at time.Time) int {
	return int(math.Floor(at.Sub(date).Hours() / 24))
}
