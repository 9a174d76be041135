package forecast

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and export format for observation dates.
const DateLayout = "2006-01-02"

// Day returns the calendar date of t as midnight UTC. The date is taken in
// t's own location, so callers pick the timezone before truncating.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"1/2/06",
	"01-02-06",
}

// ParseDate accepts the date shapes found in exported spreadsheets and SQL
// drivers and returns the calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
