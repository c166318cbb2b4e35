package dataprocessing

import (
	"fmt"
	"time"

	apierrors "timesheets/internal/errors"
	"timesheets/pkg/contracts/domain"
)

// DateRange is an inclusive interval over entry start dates. An entry that
// carries a time of day is compared exactly against the bounds, so a bare end
// date means midnight. An entry recorded as a bare date is compared by day.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses both caller-supplied bounds. Either failing yields
// an error wrapping ErrInvalidDate. start after end is not rejected here; it
// simply matches nothing.
func ParseDateRange(start, end string) (DateRange, error) {
	s, _, err := ParseDate(start)
	if err != nil {
		return DateRange{}, apierrors.NewAppError(apierrors.ErrTypeValidation,
			fmt.Sprintf("invalid start date %q", start), fmt.Errorf("%w: %v", ErrInvalidDate, err)).
			WithContext("field", "start_date")
	}
	e, _, err := ParseDate(end)
	if err != nil {
		return DateRange{}, apierrors.NewAppError(apierrors.ErrTypeValidation,
			fmt.Sprintf("invalid end date %q", end), fmt.Errorf("%w: %v", ErrInvalidDate, err)).
			WithContext("field", "end_date")
	}
	return DateRange{Start: s, End: e}, nil
}

// Contains reports whether a start date t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	if hasTimeOfDay(t) {
		return !t.Before(r.Start) && !t.After(r.End)
	}
	d := truncateDay(t)
	return !d.Before(truncateDay(r.Start)) && !d.After(truncateDay(r.End))
}

// Filter returns the entries of table whose start date lies in r. The input
// table is not modified.
func (r DateRange) Filter(table *domain.RecordTable) (*domain.RecordTable, error) {
	out := &domain.RecordTable{}
	if table != nil {
		for _, e := range table.Entries {
			if r.Contains(e.StartDate) {
				out.Entries = append(out.Entries, e)
			}
		}
	}
	if len(out.Entries) == 0 {
		return out, apierrors.NewAppError(apierrors.ErrTypeNotFound,
			"no data found in the selected date range", ErrEmptyFilterResult)
	}
	out.Blocks = countBlocks(out.Entries)
	return out, nil
}

// FilterByDateRange selects the records of table whose start date lies in
// [start, end], both inclusive.
func FilterByDateRange(table *domain.RecordTable, start, end string) (*domain.RecordTable, error) {
	r, err := ParseDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return r.Filter(table)
}

// countBlocks counts runs of consecutive entries sharing an activity.
// Adjacent blocks with the same label count once.
func countBlocks(entries []domain.Entry) int {
	n := 0
	for i, e := range entries {
		if i == 0 || entries[i-1].Activity != e.Activity {
			n++
		}
	}
	return n
}
