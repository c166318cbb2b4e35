package exporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/pkg/contracts/domain"
)

func sampleTable() *domain.RecordTable {
	return &domain.RecordTable{
		Blocks: 2,
		Entries: []domain.Entry{
			{Activity: "EC-1 Foundation works", StartDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Duration: "04:00:00", DecimalHours: 4},
			{Activity: "EC-1 Foundation works", StartDate: time.Date(2024, 1, 12, 9, 30, 0, 0, time.UTC), Duration: "01:30:00", DecimalHours: 1.5},
			{Activity: "EC-2 Walls, east side", StartDate: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), Duration: "00:15:00", DecimalHours: 0.25},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(), CSVOptions{}))

	want := strings.Join([]string{
		"Activity,Start Date,Duration,Decimal",
		"EC-1 Foundation works,2024-01-05,04:00:00,4.00",
		"EC-1 Foundation works,2024-01-12 09:30:00,01:30:00,1.50",
		`"EC-2 Walls, east side",2024-02-03,00:15:00,0.25`,
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_BOMAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, CSVOptions{BOMPrefix: true}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	assert.Equal(t, "Activity,Start Date,Duration,Decimal\n", string(buf.Bytes()[len(utf8BOM):]))
}

func TestReadCSV_RoundTrip(t *testing.T) {
	for _, bom := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, sampleTable(), CSVOptions{BOMPrefix: bom}))

		got, err := ReadCSV(&buf)
		require.NoError(t, err)
		assert.Equal(t, sampleTable(), got)
	}
}

func TestReadCSV_AdjacentBlocksMerge(t *testing.T) {
	table := &domain.RecordTable{
		Blocks: 2,
		Entries: []domain.Entry{
			{Activity: "EC-1 Foo", StartDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Duration: "01:00:00", DecimalHours: 1},
			{Activity: "EC-1 Foo", StartDate: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), Duration: "02:00:00", DecimalHours: 2},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table, CSVOptions{}))
	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Entries, got.Entries)
	assert.Equal(t, 1, got.Blocks)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		errorContains string
	}{
		{name: "empty", input: "", errorContains: "unexpected CSV header"},
		{name: "wrong header", input: "Task,Start Date,Duration,Decimal\n", errorContains: "column 0"},
		{name: "bad date", input: "Activity,Start Date,Duration,Decimal\nEC-1,someday,01:00:00,1.00\n", errorContains: "line 2"},
		{name: "bad decimal", input: "Activity,Start Date,Duration,Decimal\nEC-1,2024-01-05,01:00:00,one\n", errorContains: "invalid decimal"},
		{name: "short record", input: "Activity,Start Date,Duration,Decimal\nEC-1,2024-01-05\n", errorContains: "failed to read record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}
