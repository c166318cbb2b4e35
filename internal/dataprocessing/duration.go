package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dayPrefix matches the "N days HH:MM:SS" form some exports use for
// elapsed times longer than a day.
var dayPrefix = regexp.MustCompile(`^(\d+)\s*days?,?\s*(.*)$`)

// Largest whole units that still fit in a time.Duration.
const (
	maxDays   = math.MaxInt64 / int64(24*time.Hour)
	maxHours  = math.MaxInt64 / int64(time.Hour)
	maxMillis = math.MaxInt64 / int64(time.Millisecond)
)

// ParseDuration reads an elapsed-time cell. Accepted forms:
//
//	08:30:00, 8:30, 26:15:00, 00:00:05.5   clock style, hours unbounded
//	1 day, 02:00:00 / 2 days 00:30:00      day prefix
//	0.3541666                              spreadsheet serial (fraction of a day)
//	8h30m                                  Go duration syntax
//
// Negative values are rejected.
func ParseDuration(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrMalformedDuration)
	}

	var days time.Duration
	if m := dayPrefix.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n >= maxDays {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
		}
		days = time.Duration(n) * 24 * time.Hour
		s = strings.TrimSpace(m[2])
		if s == "" {
			return days, nil
		}
		if !strings.Contains(s, ":") {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
		}
	}

	if strings.Contains(s, ":") {
		d, err := parseClock(s)
		if err != nil || d > math.MaxInt64-days {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
		}
		return days + d, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
		}
		ms := math.Round(f * 24 * 60 * 60 * 1000)
		if ms >= float64(maxMillis) {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, text)
	}
	return d, nil
}

// parseClock parses H:MM or H:MM:SS[.fff].
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("want H:MM[:SS], got %q", s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || int64(hours) >= maxHours {
		return 0, fmt.Errorf("bad hours %q", parts[0])
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 || len(parts[1]) > 2 {
		return 0, fmt.Errorf("bad minutes %q", parts[1])
	}

	var seconds float64
	if len(parts) == 3 {
		seconds, err = strconv.ParseFloat(parts[2], 64)
		if err != nil || seconds < 0 || seconds >= 60 {
			return 0, fmt.Errorf("bad seconds %q", parts[2])
		}
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	d += time.Duration(math.Round(seconds*1000)) * time.Millisecond
	return d, nil
}

// DecimalHours converts d to hours rounded to two decimals. Ties round to
// even on the exact elapsed value, so 00:07:30 (0.125h) gives 0.12 and
// 00:22:30 (0.375h) gives 0.38.
func DecimalHours(d time.Duration) float64 {
	// hundredths of an hour = ms / 36000
	const unit = 36000
	ms := d.Milliseconds()
	q, r := ms/unit, ms%unit
	switch {
	case 2*r > unit:
		q++
	case 2*r == unit && q%2 == 1:
		q++
	}
	return float64(q) / 100
}

// NormalizeDuration parses a duration cell and returns its decimal hours.
func NormalizeDuration(text string) (float64, error) {
	d, err := ParseDuration(text)
	if err != nil {
		return 0, err
	}
	return DecimalHours(d), nil
}

// FormatClock renders d as HH:MM:SS, the form the export itself uses.
func FormatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// isSerialNumber reports whether a cell holds a bare spreadsheet number
// rather than formatted text.
func isSerialNumber(text string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	return err == nil
}
