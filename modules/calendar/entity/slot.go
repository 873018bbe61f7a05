package entity

import (
	"fmt"
	"strings"
	"time"

	"go-availability/core/constants"
	"go-availability/core/errors"
)

// Slot is one bookable (date, time-of-day) unit. Slots are derived from a
// calendar's date range and time menu; they are never stored on their own.
type Slot struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	CanonicalKey string `json:"canonical_key"`
}

// CanonicalKey joins the ISO calendar date and the time of day. Only the
// year, month and day of date are used, in date's own location.
func CanonicalKey(date time.Time, timeOfDay string) string {
	return date.Format(constants.DateLayout) + constants.SlotSeparator + timeOfDay
}

// NewSlot builds a slot from loosely formatted parts, normalising both so
// that "2024-01-01T00:00:00Z"/"9:00" and "2024-01-01"/"09:00" are the same slot.
func NewSlot(date, timeOfDay string) (Slot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Slot{}, err
	}
	t, err := NormalizeTimeOfDay(timeOfDay)
	if err != nil {
		return Slot{}, err
	}
	return SlotAt(d, t), nil
}

// SlotAt expects an already normalised time of day.
func SlotAt(date time.Time, timeOfDay string) Slot {
	return Slot{
		Date:         date.Format(constants.DateLayout),
		Time:         timeOfDay,
		CanonicalKey: CanonicalKey(date, timeOfDay),
	}
}

// ParseSlotKey parses a canonical key back into a slot, normalising it.
func ParseSlotKey(key string) (Slot, error) {
	date, tod, ok := strings.Cut(strings.TrimSpace(key), constants.SlotSeparator)
	if !ok {
		return Slot{}, fmt.Errorf("malformed slot key %q", key)
	}
	return NewSlot(date, strings.TrimSpace(tod))
}

// ParseDate accepts a bare ISO date or an RFC 3339 timestamp and keeps the
// calendar date exactly as written, without converting between zones.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) >= len(constants.DateLayout) {
		if d, err := time.Parse(constants.DateLayout, s[:len(constants.DateLayout)]); err == nil {
			rest := s[len(constants.DateLayout):]
			if rest == "" || rest[0] == 'T' || rest[0] == ' ' {
				return d, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// NormalizeTimeOfDay returns a zero-padded 24h "HH:MM".
func NormalizeTimeOfDay(s string) (string, error) {
	t, err := time.Parse(constants.TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return t.Format(constants.TimeLayout), nil
}

// DateOnly drops the clock and zone, keeping the calendar date as seen in t's location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExpandRange lists every date from start to end inclusive in ascending order.
// start == end yields a single date.
func ExpandRange(start, end time.Time) ([]time.Time, error) {
	s, e := DateOnly(start), DateOnly(end)
	if e.Before(s) {
		return nil, errors.NewAppError(errors.ErrInvalidRange,
			fmt.Sprintf("end date %s is before start date %s", e.Format(constants.DateLayout), s.Format(constants.DateLayout)), nil)
	}

	days := int(e.Sub(s).Hours()/24) + 1
	dates := make([]time.Time, 0, days)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}
