package territory

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// acceptedLayouts are tried in order. Sheets export either plain dates or
// JavaScript ISO timestamps.
var acceptedLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
}

// ParseDate parses a stored date and returns it in UTC.
// Stored dates are date-only, so every calendar field must be read at UTC;
// reading them in the host zone shifts the day by one.
// POST: ok is false for empty or unparseable input
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatShort renders DD/MM/YY for the S-13 report.
func FormatShort(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format("02/01/06")
}

// FormatLong renders the es-ES short date (d/m/yyyy) used on cards.
func FormatLong(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format("2/1/2006")
}

// DateInput renders the YYYY-MM-DD value an <input type="date"> expects.
func DateInput(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(dateLayout)
}
