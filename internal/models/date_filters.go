package models

import (
	"strings"
	"time"
)

// ParseDateFilter parses a date filter value commonly used by the API.
// Supported formats:
// - RFC3339 timestamps
// - YYYY-MM-DD
// - MM/DD/YYYY
func ParseDateFilter(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
