package dataprocessing

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"timesheets/pkg/contracts/domain"
)

// ReadWorkbook decodes one sheet of an xlsx stream into rows. An empty sheet
// name selects the first sheet. Cells are read as raw values, so dates and
// durations stored as numbers arrive as spreadsheet serials.
func ReadWorkbook(r io.Reader, sheet string) ([]domain.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	rows := make([]domain.Row, len(raw))
	for i, cells := range raw {
		rows[i] = domain.Row(cells)
	}
	return rows, nil
}

// ParseWorkbook reads a workbook and parses it in one step.
func ParseWorkbook(r io.Reader, sheet string) (*domain.RecordTable, error) {
	rows, err := ReadWorkbook(r, sheet)
	if err != nil {
		return nil, err
	}
	return Parse(rows)
}
