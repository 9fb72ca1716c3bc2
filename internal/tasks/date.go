package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type dueKind int

const (
	dueUnset dueKind = iota
	dueEpoch
	dueLegacy
)

// RawDueDate is a due date as stored. Current records hold epoch
// milliseconds; older ones may hold a free-form date string.
type RawDueDate struct {
	kind   dueKind
	epoch  int64
	legacy string
}

// Epoch wraps an epoch-millisecond due date
func Epoch(ms int64) RawDueDate {
	return RawDueDate{kind: dueEpoch, epoch: ms}
}

// LegacyString wraps a due date stored as text
func LegacyString(s string) RawDueDate {
	return RawDueDate{kind: dueLegacy, legacy: s}
}

// EpochMillis returns the stored epoch and whether the value is one
func (r RawDueDate) EpochMillis() (int64, bool) {
	return r.epoch, r.kind == dueEpoch
}

// Legacy returns the stored string and whether the value is one
func (r RawDueDate) Legacy() (string, bool) {
	return r.legacy, r.kind == dueLegacy
}

// Value returns the value in the shape a database column holds it
func (r RawDueDate) Value() any {
	switch r.kind {
	case dueEpoch:
		return r.epoch
	case dueLegacy:
		return r.legacy
	}
	return nil
}

func (r RawDueDate) String() string {
	switch r.kind {
	case dueEpoch:
		return fmt.Sprintf("epoch(%d)", r.epoch)
	case dueLegacy:
		return fmt.Sprintf("legacy(%q)", r.legacy)
	}
	return "unset"
}

// RawFromValue converts a scanned column or decoded JSON value.
func RawFromValue(v any) RawDueDate {
	switch x := v.(type) {
	case int64:
		return Epoch(x)
	case int:
		return Epoch(int64(x))
	case float64:
		return Epoch(int64(x))
	case string:
		return LegacyString(x)
	case []byte:
		return LegacyString(string(x))
	case time.Time:
		return Epoch(x.UnixMilli())
	}
	return RawDueDate{}
}

// zoned layouts carry their own offset; local ones are read in time.Local.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02T15:04:05Z0700",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.UnixDate,
		"Mon Jan 02 2006 15:04:05 GMT-0700",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		time.ANSIC,
		"Jan 2, 2006 15:04",
		"Jan 2, 2006",
		"January 2, 2006",
		"1/2/2006 15:04",
		"1/2/2006",
	}
	// Date.toString() appends a zone name in parentheses
	zoneSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// ParseDate normalizes a stored due date. It never fails: anything that is
// not a recognizable point in time becomes now.
func ParseDate(raw RawDueDate, now time.Time) time.Time {
	switch raw.kind {
	case dueEpoch:
		return time.UnixMilli(raw.epoch)
	case dueLegacy:
		if t, ok := parseCalendar(raw.legacy, time.UTC); ok {
			return t
		}
	}
	return now
}

// ParseInput reads a due date typed by the user. A bare date means local
// midnight.
func ParseInput(s string) (time.Time, error) {
	if t, ok := parseCalendar(s, time.Local); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD HH:MM)", s)
}

// parseCalendar tries every known layout. dateOnly is the zone for a bare
// YYYY-MM-DD: stored ISO dates are UTC, typed ones are local.
func parseCalendar(s string, dateOnly *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = zoneSuffix.ReplaceAllString(s, "")

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, dateOnly); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
