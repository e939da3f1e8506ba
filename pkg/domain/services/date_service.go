package services

import (
	"strings"
	"time"
)

// DateLayout is the canonical date rendering used in reports
const DateLayout = "2006-01-02"

var dateSentinels = map[string]struct{}{
	"":             {},
	"not shipped":  {},
	"not recorded": {},
	"n/a":          {},
	"none":         {},
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
}

// IsDateSentinel reports whether s is a placeholder meaning "no date"
func IsDateSentinel(s string) bool {
	_, ok := dateSentinels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseFlexibleDate parses the date formats seen in order and return records.
// ISO timestamps keep only their date part. Results are midnight UTC.
func ParseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsDateSentinel(s) {
		return time.Time{}, false
	}

	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		if t, err := time.Parse(DateLayout, s[:10]); err == nil {
			return t, true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t as YYYY-MM-DD, or "" for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DateCandidate is one named source in a date fallback chain
type DateCandidate struct {
	Source string
	Value  string
}

// FirstParsedDate walks candidates in order and returns the first that parses
func FirstParsedDate(candidates ...DateCandidate) (time.Time, DateCandidate, bool) {
	for _, c := range candidates {
		if t, ok := ParseFlexibleDate(c.Value); ok {
			return t, c, true
		}
	}
	return time.Time{}, DateCandidate{}, false
}
