// Package dateparse reads the free-form dates scraped from news sites.
//
// Two parsers exist because the callers fail in opposite directions: the
// admission selector sorts unknown dates as the oldest possible, while the
// retention sweeper must leave rows with unknown dates alone.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Epoch is the sort date assigned to unparseable values.
var Epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.Local)

// sortLayouts are tried in order against the whole trimmed value.
var sortLayouts = []string{
	"2006/1/2",
	"2006年1月2日",
	"2006-1-2",
	"2006/1/2 15:04",
	"2006-1-2 15:04:05",
	"2006年1月2日 15:04",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

// dayLayouts are tried against the first whitespace-separated token.
var dayLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006年1月2日",
}

var embeddedDate = regexp.MustCompile(`(\d{4})[/年-](\d{1,2})[/月-](\d{1,2})`)

// SortKey returns the best-effort publication time of value for ordering.
// Values that match no layout fall back to the first embedded
// year/month/day triple, then to Epoch.
func SortKey(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return Epoch
	}
	for _, layout := range sortLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	if m := embeddedDate.FindStringSubmatch(value); m != nil {
		if t, ok := ymd(m[1], m[2], m[3]); ok {
			return t
		}
	}
	return Epoch
}

// Day parses the calendar day at the start of value. The boolean is false
// when no known layout matches.
func Day(value string) (time.Time, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, fields[0], time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ymd(year, month, day string) (time.Time, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
