package dataprocessing

import "errors"

// Table-level and row-level conditions reported by Parse and FilterByDateRange.
// Returned errors wrap these sentinels, so callers match them with errors.Is.
var (
	ErrEmptyResult       = errors.New("no activity records found")
	ErrEmptyFilterResult = errors.New("no records in date range")
	ErrInvalidDate       = errors.New("invalid date")
	ErrMalformedDuration = errors.New("malformed duration")
	ErrMalformedDate     = errors.New("malformed date")
)
