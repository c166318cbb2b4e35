// Package exporter writes record tables out of the process.
//
// Two formats are produced:
//
// CSV: the processed table persisted after an upload, columns
// Activity, Start Date, Duration, Decimal. ReadCSV reads it back for filtering.
//
// XLSX: the filtered table handed to the user, one sheet named Sheet1 with a
// header row, the start date as a date-formatted cell and the decimal hours
// as a number.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := exporter.WriteCSV(&buf, table, exporter.CSVOptions{}); err != nil {
//		return err
//	}
//	table, err := exporter.ReadCSV(&buf)
//
//	err = exporter.WriteXLSX(w, filtered)
package exporter
