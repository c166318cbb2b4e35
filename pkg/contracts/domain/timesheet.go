package domain

import (
	"strings"
	"time"
)

// Column positions used by the activity export layout.
const (
	ColumnMarker    = 0
	ColumnStartDate = 2
	ColumnDuration  = 6
)

// Row is one line of the source sheet as raw cell text, in file order.
// A row may be shorter than the highest column the parser reads.
type Row []string

// Cell returns the trimmed text at index i. ok is false when the row has no
// such column, so callers can tell an absent cell from a blank one.
func (r Row) Cell(i int) (value string, ok bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return strings.TrimSpace(r[i]), true
}

// Entry is a single time-tracking line attributed to an activity.
type Entry struct {
	Activity     string    `json:"activity" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	Duration     string    `json:"duration" validate:"required"`
	DecimalHours float64   `json:"decimal_hours" validate:"min=0"`
}

// SkipReason explains why a source row produced no entry.
type SkipReason string

const (
	SkipMissingCell       SkipReason = "missing_cell"
	SkipMalformedDuration SkipReason = "malformed_duration"
	SkipMalformedDate     SkipReason = "malformed_date"
	SkipNullField         SkipReason = "null_field"
)

// SkippedRow records a data row that was dropped while an activity block was open.
// Row is the zero-based index into the source rows.
type SkippedRow struct {
	Row    int        `json:"row"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// RecordTable is the flattened output of a parse: entries of every flushed
// block concatenated in block order.
type RecordTable struct {
	Entries []Entry      `json:"entries" validate:"dive"`
	Blocks  int          `json:"blocks"`
	Skipped []SkippedRow `json:"skipped,omitempty"`
}

// Len returns the number of entries in the table.
func (t *RecordTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// TotalHours sums the decimal hours of every entry.
func (t *RecordTable) TotalHours() float64 {
	if t == nil {
		return 0
	}
	var total float64
	for _, e := range t.Entries {
		total += e.DecimalHours
	}
	return total
}

// Activities returns the distinct activity labels in first-appearance order.
func (t *RecordTable) Activities() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.Entries {
		if !seen[e.Activity] {
			seen[e.Activity] = true
			out = append(out, e.Activity)
		}
	}
	return out
}

// UploadSummary describes the outcome of processing an uploaded workbook.
type UploadSummary struct {
	UploadID   string       `json:"upload_id"`
	Filename   string       `json:"filename"`
	Entries    int          `json:"entries"`
	Blocks     int          `json:"blocks"`
	Activities []string     `json:"activities"`
	TotalHours float64      `json:"total_hours"`
	Skipped    []SkippedRow `json:"skipped,omitempty"`
}

// FilterRequest carries the caller-supplied date range for a processed upload.
type FilterRequest struct {
	UploadID  string `json:"unique_id" validate:"required,uuid"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// FilterResult describes an exported, date-filtered workbook.
type FilterResult struct {
	UploadID   string  `json:"upload_id"`
	Filename   string  `json:"filename"`
	Entries    int     `json:"entries"`
	TotalHours float64 `json:"total_hours"`
}

// ActivitySummary aggregates the entries of one activity.
type ActivitySummary struct {
	Activity    string    `json:"activity"`
	Entries     int       `json:"entries"`
	TotalHours  float64   `json:"total_hours"`
	MeanHours   float64   `json:"mean_hours"`
	MedianHours float64   `json:"median_hours"`
	MaxHours    float64   `json:"max_hours"`
	FirstStart  time.Time `json:"first_start"`
	LastStart   time.Time `json:"last_start"`
}
