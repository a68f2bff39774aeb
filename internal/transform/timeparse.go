package transform

import (
	"strings"
	"time"
)

// Layouts accepted for Canvas timestamps, tried in order. Naive layouts
// (no offset) are interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601-ish timestamp string. A trailing Z
// normalizes to UTC offset; strings with no offset are assumed UTC.
// Unparsable or empty input yields nil, never an error: the caller logs a
// warning and carries on.
func ParseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasSuffix(raw, "Z") {
		raw = strings.TrimSuffix(raw, "Z") + "+00:00"
	}
	for _, layout := range timeLayouts {
		loc := time.UTC
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// timeField extracts and parses a timestamp from a raw record value.
// Returns the parsed time (nil when absent or unparsable) and a warning
// message when a present value failed to parse.
func timeField(v any, field string) (*time.Time, string) {
	if v == nil {
		return nil, ""
	}
	raw, ok := v.(string)
	if !ok {
		return nil, "field " + field + " is not a timestamp string"
	}
	if raw == "" {
		return nil, ""
	}
	parsed := ParseTime(raw)
	if parsed == nil {
		return nil, "unparsable timestamp in field " + field + ": " + raw
	}
	return parsed, ""
}
