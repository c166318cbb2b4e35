// Package dataprocessing extracts time-tracking records from activity exports.
//
// An export sheet holds several activity sections one after another. Each
// section opens with a marker row whose first cell carries an activity code
// ("EC-1 Foundation works"), repeats a column-header line starting with
// "Started By", lists one row per tracked interval, and may close with a
// "Total" line. Sections without a total line end at the next marker or at
// the end of the sheet.
//
// # Data Flow
//
//	xlsx stream → ReadWorkbook → []domain.Row → Parse → RecordTable → FilterByDateRange
//
// Parse is a single pass over the rows. Activity labels are canonicalised per
// parse: the first marker seen for a code fixes the label used for every later
// block with the same code.
//
// # Usage
//
//	table, err := dataprocessing.ParseWorkbook(file, "")
//	if errors.Is(err, dataprocessing.ErrEmptyResult) {
//	    // nothing to export
//	}
//	filtered, err := dataprocessing.FilterByDateRange(table, "2024-01-01", "2024-01-31")
//
// # Error Handling
//
// Unreadable data rows never abort a parse; they are listed in
// RecordTable.Skipped with the row index and a reason. Table-level
// conditions are returned as errors wrapping ErrEmptyResult,
// ErrInvalidDate or ErrEmptyFilterResult. Nothing in this package logs.
package dataprocessing
