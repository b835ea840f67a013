package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (fractional seconds allowed) or a positive unix
// timestamp in seconds or milliseconds. The result is in UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or unix seconds", s)
}

// ParseTimeOr is ParseTime with def for an empty string.
func ParseTimeOr(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return ParseTime(s)
}

// UnixAuto reads ts as seconds or, when it is too large to be seconds, as
// milliseconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1e11 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
