package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	// ErrEmptyTimestamp is returned when a timestamp field is blank.
	ErrEmptyTimestamp = errors.New("domain: empty timestamp")
	// ErrAmbiguousTimestamp is returned for values whose meaning depends on
	// locale, such as 3/4/2024, or that carry no year.
	ErrAmbiguousTimestamp = errors.New("domain: ambiguous timestamp")
)

// minFallbackYear bounds what the tolerant fallback parser may produce. Yearless
// values like "May 5" come back in year 0.
const minFallbackYear = 1970

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-like timestamps produced by date/time form
// inputs and backend payloads. Values without a zone are interpreted in loc.
// Anything the fixed layouts reject is handed to dateparse, which also
// understands epoch seconds and milliseconds; month/day ambiguous and yearless
// values are rejected.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrEmptyTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if _, err := dateparse.ParseStrict(value); errors.Is(err, dateparse.ErrAmbiguousMMDD) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrAmbiguousTimestamp, value)
	}
	t, err := dateparse.ParseIn(value, loc)
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() < minFallbackYear {
		return time.Time{}, fmt.Errorf("%w: %q", ErrAmbiguousTimestamp, value)
	}
	return t, nil
}
