package core

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout + ".999999999",
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	DateLayout,
}

// FormatTimestamp renders t for storage: UTC, RFC 3339, whole seconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime reads a persisted timestamp. Seeded data uses several layouts,
// so each known one is tried in turn. Values without an offset are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// OptionalString turns a blank string into nil.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
