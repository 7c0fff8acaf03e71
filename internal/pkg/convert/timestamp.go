package convert

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006.01.02",
}

// ToTime parses date-like values into a UTC timestamp. Integers are
// interpreted as unix seconds or milliseconds depending on magnitude.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case int64:
		return unixTime(t)
	case int:
		return unixTime(int64(t))
	case float64:
		return unixTime(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return unixTime(n)
		}
		return parseTimeString(t.String())
	case string:
		return parseTimeString(t)
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 10_000_000 {
		return unixTime(n)
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func unixTime(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	// values beyond ~year 5000 in seconds are treated as milliseconds
	if n > 100_000_000_000 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
