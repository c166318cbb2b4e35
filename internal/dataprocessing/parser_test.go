package dataprocessing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/pkg/contracts/domain"
)

func marker(text string) domain.Row {
	return domain.Row{text}
}

func header() domain.Row {
	return domain.Row{HeaderSentinel, "Activity", "Start Date", "Start Time", "End Date", "End Time", "Duration"}
}

func dataRow(user, start, duration string) domain.Row {
	return domain.Row{user, "", start, "", "", "", duration}
}

func total() domain.Row {
	return domain.Row{"Total", "", "", "", "", "", "04:00:00"}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_SingleBlock(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foo"),
		header(),
		dataRow("Alice", "2024-01-05", "04:00:00"),
		total(),
	}

	table, err := Parse(rows)
	require.NoError(t, err)

	require.Len(t, table.Entries, 1)
	assert.Equal(t, domain.Entry{
		Activity:     "EC-1 Foo",
		StartDate:    day(2024, time.January, 5),
		Duration:     "04:00:00",
		DecimalHours: 4.0,
	}, table.Entries[0])
	assert.Equal(t, 1, table.Blocks)
	assert.Empty(t, table.Skipped)
}

func TestParse_RegistryFirstSeenWins(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foundation works"),
		dataRow("Alice", "2024-01-05", "01:00:00"),
		total(),
		marker("EC-2 Framing"),
		dataRow("Bob", "2024-01-06", "02:00:00"),
		marker("EC-1 Foundation works (cont.)"),
		dataRow("Carol", "2024-01-07", "03:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 3)

	assert.Equal(t, "EC-1 Foundation works", table.Entries[0].Activity)
	assert.Equal(t, "EC-2 Framing", table.Entries[1].Activity)
	assert.Equal(t, "EC-1 Foundation works", table.Entries[2].Activity)
	assert.Equal(t, 3, table.Blocks)
}

func TestParse_LastBlockFlushedWithoutTotal(t *testing.T) {
	rows := []domain.Row{
		marker("AB-7 Design"),
		header(),
		dataRow("Alice", "2024-03-01", "00:30:00"),
		dataRow("Alice", "2024-03-02", "01:15:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, 0.5, table.Entries[0].DecimalHours)
	assert.Equal(t, 1.25, table.Entries[1].DecimalHours)
	assert.Equal(t, 1, table.Blocks)
}

func TestParse_NextMarkerClosesBlock(t *testing.T) {
	rows := []domain.Row{
		marker("X-1 First"),
		dataRow("A", "2024-01-01", "01:00:00"),
		marker("Y-2 Second"),
		dataRow("B", "2024-01-02", "02:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, "X-1 First", table.Entries[0].Activity)
	assert.Equal(t, "Y-2 Second", table.Entries[1].Activity)
	assert.Equal(t, 2, table.Blocks)
}

func TestParse_MissingDurationCellSkipsOnlyThatRow(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foo"),
		header(),
		dataRow("Alice", "2024-01-05", "01:00:00"),
		{"Bob", "", "2024-01-06"},
		dataRow("Carol", "2024-01-07", "02:00:00"),
		total(),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, day(2024, time.January, 5), table.Entries[0].StartDate)
	assert.Equal(t, day(2024, time.January, 7), table.Entries[1].StartDate)

	require.Len(t, table.Skipped, 1)
	assert.Equal(t, 3, table.Skipped[0].Row)
	assert.Equal(t, domain.SkipMissingCell, table.Skipped[0].Reason)
}

func TestParse_RowLevelSkips(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foo"),
		dataRow("Alice", "2024-01-05", "not a time"),
		dataRow("Bob", "yesterday-ish", "01:00:00"),
		dataRow("Carol", "2024-01-07", ""),
		dataRow("Dan", "", "01:00:00"),
		dataRow("Eve", "2024-01-08", "00:45:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, 0.75, table.Entries[0].DecimalHours)

	reasons := make(map[int]domain.SkipReason)
	for _, s := range table.Skipped {
		reasons[s.Row] = s.Reason
	}
	assert.Equal(t, map[int]domain.SkipReason{
		1: domain.SkipMalformedDuration,
		2: domain.SkipMalformedDate,
		3: domain.SkipNullField,
		4: domain.SkipNullField,
	}, reasons)

	for i := 1; i < len(table.Skipped); i++ {
		assert.Less(t, table.Skipped[i-1].Row, table.Skipped[i].Row)
	}
}

func TestParse_IgnoresRowsOutsideBlocks(t *testing.T) {
	rows := []domain.Row{
		{"Timesheet export"},
		header(),
		dataRow("Alice", "2024-01-01", "09:00:00"),
		{},
		{"", "", "2024-01-01", "", "", "", "01:00:00"},
		marker("EC-1 Foo"),
		{"", "", "2024-01-02", "", "", "", "01:00:00"},
		dataRow("Bob", "2024-01-03", "02:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, "EC-1 Foo", table.Entries[0].Activity)
	assert.Equal(t, 2.0, table.Entries[0].DecimalHours)
}

func TestParse_RowsAfterTotalStayInActivity(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foo"),
		dataRow("Alice", "2024-01-05", "01:00:00"),
		total(),
		dataRow("Bob", "2024-01-06", "02:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	assert.Equal(t, "EC-1 Foo", table.Entries[1].Activity)
}

func TestParse_BlockCountMatchesMarkersWithData(t *testing.T) {
	rows := []domain.Row{
		marker("A-1 One"),
		dataRow("u", "2024-01-01", "01:00:00"),
		marker("B-2 Empty"),
		header(),
		total(),
		marker("C-3 Only bad rows"),
		dataRow("u", "2024-01-01", ""),
		marker("D-4 Four"),
		dataRow("u", "2024-01-02", "01:00:00"),
		dataRow("u", "2024-01-03", "01:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Blocks)
	assert.Len(t, table.Entries, 3)
}

func TestParse_MarkerPatternAnywhereInCell(t *testing.T) {
	rows := []domain.Row{
		marker("Phase 2 / task B-4"),
		dataRow("u", "2024-01-01", "01:00:00"),
		marker("Phase 3 / task C-9"),
		dataRow("u", "2024-01-02", "01:00:00"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 2)
	// both markers share the key "Phase", so the first label wins
	assert.Equal(t, "Phase 2 / task B-4", table.Entries[1].Activity)
}

func TestParse_SerialDurationRenderedAsClock(t *testing.T) {
	rows := []domain.Row{
		marker("EC-1 Foo"),
		dataRow("Alice", "45296", "0.3541666666666667"),
	}

	table, err := Parse(rows)
	require.NoError(t, err)
	require.Len(t, table.Entries, 1)
	assert.Equal(t, "08:30:00", table.Entries[0].Duration)
	assert.Equal(t, 8.5, table.Entries[0].DecimalHours)
	assert.Equal(t, day(2024, time.January, 5), table.Entries[0].StartDate)
}

func TestParse_EmptyResult(t *testing.T) {
	tests := []struct {
		name string
		rows []domain.Row
	}{
		{name: "no rows", rows: nil},
		{name: "no marker", rows: []domain.Row{header(), dataRow("Alice", "2024-01-05", "01:00:00")}},
		{name: "markers without data", rows: []domain.Row{marker("EC-1 Foo"), header(), total()}},
		{name: "only incomplete rows", rows: []domain.Row{marker("EC-1 Foo"), dataRow("Alice", "", "")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(tt.rows)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEmptyResult))
			require.NotNil(t, table)
			assert.Empty(t, table.Entries)
		})
	}
}

func TestParse_IndependentInvocations(t *testing.T) {
	a := []domain.Row{marker("EC-1 First label"), dataRow("u", "2024-01-01", "01:00:00")}
	b := []domain.Row{marker("EC-1 Other label"), dataRow("u", "2024-01-01", "01:00:00")}

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows := a
			if i%2 == 1 {
				rows = b
			}
			table, err := Parse(rows)
			if err == nil {
				results[i] = table.Entries[0].Activity
			}
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if i%2 == 0 {
			assert.Equal(t, "EC-1 First label", got)
		} else {
			assert.Equal(t, "EC-1 Other label", got)
		}
	}
}

func TestActivityRegistry(t *testing.T) {
	r := make(activityRegistry)
	assert.Equal(t, "EC-1 Foo", r.resolve("EC-1 Foo"))
	assert.Equal(t, "EC-1 Foo", r.resolve("EC-1   Foo bar"))
	assert.Equal(t, "EC-2 Bar", r.resolve("EC-2 Bar"))
	assert.Equal(t, "", activityKey("   "))
	assert.Equal(t, "EC-1", activityKey(" EC-1\tFoo"))
}
