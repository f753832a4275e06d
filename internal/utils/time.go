package utils

import (
	"time"
)

func Now() time.Time {
	return time.Now().UTC()
}

// EnsureUTC forces a time into UTC without altering the instant.
func EnsureUTC(t time.Time) time.Time {
	return t.UTC()
}

// ParseISOTime accepts RFC3339 timestamps, including the trailing-Z form
// Graph emits for receivedDateTime.
func ParseISOTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// FormatISOUTC renders an instant the way Graph filters and Paperless
// created fields expect it.
func FormatISOUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
