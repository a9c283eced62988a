// Package period resolves "now" and period windows in the user's timezone.
//
// Window boundaries are computed on the local calendar (so a week window
// reflects the user's day boundary) and returned in UTC, which is the only
// representation the store compares against.
package period

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

type Period string

func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case Week:
		return Week, nil
	case Month:
		return Month, nil
	case Year:
		return Year, nil
	}
	return "", fmt.Errorf("unknown period %q (want week, month or year)", s)
}

// Location resolves a timezone identifier, falling back to the host's
// local zone when the identifier is empty or unknown.
func Location(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("Unknown timezone, falling back to host local", "tz", tz, "error", err)
		return time.Local
	}
	return loc
}

// Now returns the current time in tz.
func Now(tz string) time.Time {
	return time.Now().In(Location(tz))
}

// WindowStart returns the UTC start of the given period window anchored to
// "now" in tz: now minus 7 days, 1 month or 1 year.
func WindowStart(p Period, tz string) time.Time {
	return windowStartAt(p, Now(tz))
}

// WindowStartAt is WindowStart anchored to an explicit local "now",
// used by tests and by callers that already resolved the clock.
func WindowStartAt(p Period, now time.Time) time.Time {
	return windowStartAt(p, now)
}

func windowStartAt(p Period, now time.Time) time.Time {
	var start time.Time
	switch p {
	case Week:
		start = now.AddDate(0, 0, -7)
	case Month:
		start = now.AddDate(0, -1, 0)
	case Year:
		start = now.AddDate(-1, 0, 0)
	default:
		start = now.AddDate(0, -1, 0)
	}
	return start.UTC()
}
