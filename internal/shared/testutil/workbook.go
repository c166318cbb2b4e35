package testutil

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

// SampleTimesheetRows is a small export with two activities, a repeated
// header line, a total line and one incomplete entry.
func SampleTimesheetRows() [][]interface{} {
	return [][]interface{}{
		{"Timesheet report"},
		{"EC-1 Foundation works"},
		{"Started By", "", "Start Date", "", "", "", "Duration"},
		{"Alice", "", "2024-01-05", "", "", "", "04:00:00"},
		{"Bob", "", "2024-01-12", "", "", "", "01:30:00"},
		{"Total", "", "", "", "", "", "05:30:00"},
		{"EC-2 Walls"},
		{"Started By", "", "Start Date", "", "", "", "Duration"},
		{"Carol", "", "2024-02-03", "", "", "", "00:15:00"},
		{"Dan", "", "", "", "", "", "02:00:00"},
		{"Total", "", "", "", "", "", "02:15:00"},
	}
}

// TimesheetWorkbook encodes rows into the first sheet of a new xlsx file.
func TimesheetWorkbook(t testing.TB, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &rows[i]); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}
