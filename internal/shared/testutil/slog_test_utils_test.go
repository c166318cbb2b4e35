package testutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	})

	t.Run("derived loggers share the buffer", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "parser")).WithGroup("req").Info("done", slog.Int("rows", 3))

		require.Equal(t, 1, handler.Count())
		assert.True(t, handler.ContainsAttr("component", "parser"))
		assert.True(t, handler.ContainsAttr("req.rows", int64(3)))

		handler.Clear()
		assert.Equal(t, 0, handler.Count())
	})
}

func TestTimesheetWorkbook(t *testing.T) {
	data := TimesheetWorkbook(t, SampleTimesheetRows())

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, len(SampleTimesheetRows()))
	assert.Equal(t, "EC-1 Foundation works", rows[1][0])
	assert.Equal(t, "04:00:00", rows[3][6])
}
