package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"timesheets/internal/dataprocessing"
	"timesheets/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrBadHeader is returned by ReadCSV when the first line is not the
// expected column header.
var ErrBadHeader = errors.New("unexpected CSV header")

// CSVOptions configures WriteCSV.
type CSVOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes table with a header row. Blocks and skipped rows are not
// persisted.
func WriteCSV(w io.Writer, table *domain.RecordTable, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if table != nil {
		for i, e := range table.Entries {
			if err := writer.Write(entryRecord(e)); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV reads a table written by WriteCSV. A leading BOM is ignored.
// The file does not record block boundaries, so Blocks counts runs of equal
// activity labels. Two adjacent blocks under the same label read back as
// one, and Blocks can be lower than the parse reported.
func ReadCSV(r io.Reader) (*domain.RecordTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Columns)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrBadHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], string(utf8BOM))
	for i, col := range Columns {
		if header[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], col)
		}
	}

	table := &domain.RecordTable{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		start, _, err := dataprocessing.ParseDate(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		hours, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid decimal %q: %w", line, record[3], err)
		}

		if n := len(table.Entries); n == 0 || table.Entries[n-1].Activity != record[0] {
			table.Blocks++
		}
		table.Entries = append(table.Entries, domain.Entry{
			Activity:     record[0],
			StartDate:    start,
			Duration:     record[2],
			DecimalHours: hours,
		})
	}
	return table, nil
}
