package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATES - Transaction dates are user supplied, not write timestamps
// =============================================================================

// DateLayout is the calendar-day format accepted from clients.
const DateLayout = "2006-01-02"

// ParseDate accepts either a calendar day or a full RFC3339 timestamp.
// An empty string yields the zero time, which ledgers treat as "no date".
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC3339)", s)
	}
	return t.UTC(), nil
}

// FormatDate renders a ledger date, or "" when the entry has none.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
