package timecalc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date layout used for schedules.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date (no time of day).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// AllDaySpan returns the start and exclusive end dates of an all-day event
// on the given day.
func AllDaySpan(date string) (string, string, error) {
	start, err := ParseDate(date)
	if err != nil {
		return "", "", err
	}
	return start.Format(DateLayout), NextDay(start).Format(DateLayout), nil
}

// NextDay returns midnight of the following day in t's location.
func NextDay(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}

// ParseScheduleDate accepts either an ISO date or an RFC 3339 date-time, the
// two shapes a schedule date can take.
func ParseScheduleDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true, nil
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cannot parse schedule date %q", s)
}

// DayKey returns the calendar day portion of a schedule date, or "" when the
// date is empty or unparseable.
func DayKey(s string) string {
	t, allDay, err := ParseScheduleDate(s)
	if err != nil {
		return ""
	}
	if allDay {
		return t.Format(DateLayout)
	}
	// Keep the provider's wall-clock day rather than converting to UTC.
	return s[:len(DateLayout)]
}

// SortedDays returns the keys of a per-day totals map in ascending order.
func SortedDays(totals map[string]int64) []string {
	days := make([]string, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// FormatAmount formats an integer amount with thousands separators, e.g.
// 1000000 -> "1,000,000".
func FormatAmount(amount int64) string {
	sign := ""
	magnitude := uint64(amount)
	if amount < 0 {
		sign = "-"
		magnitude = -magnitude
	}
	digits := strconv.FormatUint(magnitude, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}
