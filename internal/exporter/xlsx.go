package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"timesheets/pkg/contracts/domain"
)

// SheetName is the single sheet of an exported workbook.
const SheetName = "Sheet1"

const (
	dateFormat    = "yyyy-mm-dd hh:mm:ss"
	decimalFormat = 2 // built-in "0.00"
)

// WriteXLSX writes table as a workbook with a header row and one row per
// entry.
func WriteXLSX(w io.Writer, table *domain.RecordTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := fillSheet(f, table); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func fillSheet(f *excelize.File, table *domain.RecordTable) error {
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", bold); err != nil {
		return err
	}

	if table == nil || len(table.Entries) == 0 {
		return nil
	}

	numFmt := dateFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}
	decimalStyle, err := f.NewStyle(&excelize.Style{NumFmt: decimalFormat})
	if err != nil {
		return fmt.Errorf("failed to create decimal style: %w", err)
	}

	for i, e := range table.Entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{e.Activity, e.StartDate, e.Duration, e.DecimalHours}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	last := len(table.Entries) + 1
	if err := f.SetCellStyle(SheetName, "B2", fmt.Sprintf("B%d", last), dateStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "D2", fmt.Sprintf("D%d", last), decimalStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(SheetName, "A", "A", 40); err != nil {
		return err
	}
	return f.SetColWidth(SheetName, "B", "D", 20)
}
