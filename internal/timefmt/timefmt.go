// Package timefmt normalizes the timestamp encodings found in the posts and users
// tables into a single display form.
//
// Rows written by this server use StorageLayout, but older rows (and rows written by
// other tools against the same database) may carry fractional seconds, an ISO "Z"
// suffix, or only a date. Everything is treated as local wall-clock time: no timezone
// conversion is applied in either direction.
package timefmt

import (
	"fmt"
	"time"
)

// StorageLayout is the layout used when writing created_at columns.
const StorageLayout = "2006-01-02 15:04:05"

// DisplayLayout is the layout produced by Format.
const DisplayLayout = "2006-01-02 15:04:05"

// layouts are tried in order; the first that parses wins.
var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts v into a time.Time.
//
// v may be a string in one of the known layouts, a time.Time or a *time.Time. The
// boolean is false when v could not be interpreted; callers are expected to keep
// using the original value in that case.
func Normalize(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range layouts {
			if parsed, err := time.ParseInLocation(layout, t, time.Local); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// Format renders v as "YYYY-MM-DD HH:MM:SS". Values Normalize rejects come back
// unchanged: strings verbatim, anything else through fmt.Sprint.
func Format(v any) string {
	if t, ok := Normalize(v); ok {
		return t.Format(DisplayLayout)
	}
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Now returns the current local time in StorageLayout.
func Now() string {
	return time.Now().Format(StorageLayout)
}
