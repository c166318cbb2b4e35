package dataprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// dateLayouts are tried in order. Slash dates are month-first, as in the
// US-locale exports this tool reads.
var dateLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02", false},
	{"2006/01/02 15:04:05", true},
	{"2006/01/02", false},
	{"01/02/2006 15:04:05", true},
	{"01/02/2006 15:04", true},
	{"1/2/2006 15:04:05", true},
	{"1/2/2006 15:04", true},
	{"01/02/2006", false},
	{"1/2/2006", false},
	{"01-02-06", false},
	{"2 Jan 2006", false},
	{"02 Jan 2006 15:04", true},
	{"Jan 2, 2006", false},
	{"January 2, 2006", false},
}

// ParseDate reads a start-date cell or a caller-supplied boundary. Bare
// numbers are spreadsheet serial dates. hasClock reports whether the value
// carried a time of day.
func ParseDate(text string) (t time.Time, hasClock bool, err error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("%w: empty value", ErrMalformedDate)
	}

	if serial, perr := strconv.ParseFloat(s, 64); perr == nil {
		if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
			return time.Time{}, false, fmt.Errorf("%w: %q", ErrMalformedDate, text)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %q", ErrMalformedDate, text)
		}
		_, frac := math.Modf(serial)
		return t.UTC().Round(time.Second), frac != 0, nil
	}

	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t.UTC(), l.hasClock, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrMalformedDate, text)
}

// FormatStartDate renders a start date the way the processed table stores
// it: date only at midnight, date and time otherwise.
func FormatStartDate(t time.Time) string {
	if !hasTimeOfDay(t) {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// hasTimeOfDay reports whether t is anything other than midnight. Stored
// tables write midnight as a bare date, so the two are not told apart.
func hasTimeOfDay(t time.Time) bool {
	return !t.Equal(truncateDay(t))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
