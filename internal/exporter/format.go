package exporter

import (
	"strconv"

	"timesheets/internal/dataprocessing"
	"timesheets/pkg/contracts/domain"
)

// Columns of both export formats, in order.
var Columns = []string{"Activity", "Start Date", "Duration", "Decimal"}

// formatFloat formats decimal hours with exactly 2 decimal places,
// so 4 is written as 4.00.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func entryRecord(e domain.Entry) []string {
	return []string{
		e.Activity,
		dataprocessing.FormatStartDate(e.StartDate),
		e.Duration,
		formatFloat(e.DecimalHours),
	}
}
