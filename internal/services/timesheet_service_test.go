package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"timesheets/internal/dataprocessing"
	apierrors "timesheets/internal/errors"
	"timesheets/internal/shared/testutil"
	"timesheets/internal/storage"
	"timesheets/internal/validation"
	"timesheets/pkg/contracts/domain"
)

const testUploadID = "6f1c2d3e-4a5b-4c6d-8e7f-9a0b1c2d3e4f"

func newTestService(t *testing.T, opts TimesheetOptions) (*TimesheetService, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "store"), nil)
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)
	svc := NewTimesheetService(store, opts, logger)
	svc.newID = func() string { return testUploadID }
	return svc, store
}

func sampleWorkbook(t *testing.T) io.Reader {
	return bytes.NewReader(testutil.TimesheetWorkbook(t, testutil.SampleTimesheetRows()))
}

func requireAppErrorType(t *testing.T, err error, want apierrors.ErrorType) {
	t.Helper()
	var appErr *apierrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, want, appErr.Type)
}

func TestTimesheetService_Upload(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, TimesheetOptions{})

	summary, err := svc.Upload(ctx, "../March hours.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	assert.Equal(t, testUploadID, summary.UploadID)
	assert.Equal(t, "March_hours.xlsx", summary.Filename)
	assert.Equal(t, 3, summary.Entries)
	assert.Equal(t, 2, summary.Blocks)
	assert.Equal(t, []string{"EC-1 Foundation works", "EC-2 Walls"}, summary.Activities)
	assert.InDelta(t, 5.75, summary.TotalHours, 1e-9)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, domain.SkipNullField, summary.Skipped[0].Reason)

	for _, key := range []string{testUploadID + "_March_hours.xlsx", ProcessedKey(testUploadID)} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	table, err := svc.Table(ctx, testUploadID)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "04:00:00", table.Entries[0].Duration)
}

func TestTimesheetService_UploadDottedName(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, TimesheetOptions{})

	summary, err := svc.Upload(ctx, "Q1..report.xlsx", sampleWorkbook(t))
	require.NoError(t, err)
	assert.Equal(t, "Q1.report.xlsx", summary.Filename)

	ok, err := store.Exists(ctx, testUploadID+"_Q1.report.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTimesheetService_UploadRejects(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		body     func(t *testing.T) io.Reader
		wantType apierrors.ErrorType
		wantIs   error
	}{
		{
			name:     "name sanitises to nothing",
			filename: "///",
			body:     sampleWorkbook,
			wantType: apierrors.ErrTypeValidation,
		},
		{
			name:     "legacy xls",
			filename: "hours.xls",
			body:     sampleWorkbook,
			wantType: apierrors.ErrTypeValidation,
			wantIs:   validation.ErrUnsupportedExtension,
		},
		{
			name:     "not a workbook",
			filename: "hours.xlsx",
			body:     func(t *testing.T) io.Reader { return strings.NewReader("plain text") },
			wantType: apierrors.ErrTypeParsing,
		},
		{
			name:     "no marker rows",
			filename: "hours.xlsx",
			body: func(t *testing.T) io.Reader {
				return bytes.NewReader(testutil.TimesheetWorkbook(t, [][]interface{}{{"just", "text"}}))
			},
			wantType: apierrors.ErrTypeParsing,
			wantIs:   dataprocessing.ErrEmptyResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, TimesheetOptions{})
			_, err := svc.Upload(ctx, tt.filename, tt.body(t))
			require.Error(t, err)
			requireAppErrorType(t, err, tt.wantType)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestTimesheetService_UploadNamedSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Hours")
	require.NoError(t, err)
	for i, row := range testutil.SampleTimesheetRows() {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Hours", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	svc, _ := newTestService(t, TimesheetOptions{Sheet: "Hours"})
	summary, err := svc.Upload(context.Background(), "hours.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Entries)
}

func TestTimesheetService_Filter(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, TimesheetOptions{})
	_, err := svc.Upload(ctx, "hours.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	result, err := svc.Filter(ctx, domain.FilterRequest{
		UploadID:  testUploadID,
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
	})
	require.NoError(t, err)
	assert.Equal(t, FilteredKey(testUploadID), result.Filename)
	assert.Equal(t, 2, result.Entries)
	assert.InDelta(t, 5.5, result.TotalHours, 1e-9)

	rc, err := store.Get(ctx, result.Filename)
	require.NoError(t, err)
	defer rc.Close()
	f, err := excelize.OpenReader(rc)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "EC-1 Foundation works", rows[1][0])
}

func TestTimesheetService_FilterErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, TimesheetOptions{})
	_, err := svc.Upload(ctx, "hours.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	tests := []struct {
		name     string
		req      domain.FilterRequest
		wantType apierrors.ErrorType
		wantIs   error
	}{
		{
			name:     "malformed id",
			req:      domain.FilterRequest{UploadID: "../etc", StartDate: "2024-01-01", EndDate: "2024-12-31"},
			wantType: apierrors.ErrTypeValidation,
		},
		{
			name:     "unknown upload",
			req:      domain.FilterRequest{UploadID: "11111111-2222-4333-8444-555555555555", StartDate: "2024-01-01", EndDate: "2024-12-31"},
			wantType: apierrors.ErrTypeNotFound,
		},
		{
			name:     "invalid date",
			req:      domain.FilterRequest{UploadID: testUploadID, StartDate: "yesterday", EndDate: "2024-12-31"},
			wantType: apierrors.ErrTypeValidation,
			wantIs:   dataprocessing.ErrInvalidDate,
		},
		{
			name:     "nothing in range",
			req:      domain.FilterRequest{UploadID: testUploadID, StartDate: "2023-01-01", EndDate: "2023-12-31"},
			wantType: apierrors.ErrTypeNotFound,
			wantIs:   dataprocessing.ErrEmptyFilterResult,
		},
		{
			name:     "start after end",
			req:      domain.FilterRequest{UploadID: testUploadID, StartDate: "2024-12-31", EndDate: "2024-01-01"},
			wantType: apierrors.ErrTypeNotFound,
			wantIs:   dataprocessing.ErrEmptyFilterResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Filter(ctx, tt.req)
			require.Error(t, err)
			requireAppErrorType(t, err, tt.wantType)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestTimesheetService_Summary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, TimesheetOptions{})
	_, err := svc.Upload(ctx, "hours.xlsx", sampleWorkbook(t))
	require.NoError(t, err)

	summaries, err := svc.Summary(ctx, testUploadID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].Entries)
	assert.Equal(t, 5.5, summaries[0].TotalHours)
	assert.Equal(t, 0.25, summaries[1].TotalHours)
}

func TestTimesheetService_Download(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, opts TimesheetOptions) (*TimesheetService, *storage.LocalStore) {
		svc, store := newTestService(t, opts)
		_, err := svc.Upload(ctx, "hours.xlsx", sampleWorkbook(t))
		require.NoError(t, err)
		_, err = svc.Filter(ctx, domain.FilterRequest{UploadID: testUploadID, StartDate: "2024-01-01", EndDate: "2024-12-31"})
		require.NoError(t, err)
		return svc, store
	}

	t.Run("streams the workbook", func(t *testing.T) {
		svc, store := setup(t, TimesheetOptions{})
		rc, err := svc.Download(ctx, FilteredKey(testUploadID))
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, bytes.HasPrefix(data, []byte("PK")), "xlsx is a zip archive")

		ok, err := store.Exists(ctx, FilteredKey(testUploadID))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("deletes after close when configured", func(t *testing.T) {
		svc, store := setup(t, TimesheetOptions{DeleteAfterDownload: true})
		rc, err := svc.Download(ctx, FilteredKey(testUploadID))
		require.NoError(t, err)
		_, err = io.Copy(io.Discard, rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		ok, err := store.Exists(ctx, FilteredKey(testUploadID))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects names outside the export namespace", func(t *testing.T) {
		svc, _ := setup(t, TimesheetOptions{})
		for _, name := range []string{"../secret_filtered_by_date.xlsx", ProcessedKey(testUploadID), testUploadID + "_hours.xlsx"} {
			_, err := svc.Download(ctx, name)
			requireAppErrorType(t, err, apierrors.ErrTypeValidation)
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		svc, _ := setup(t, TimesheetOptions{})
		_, err := svc.Download(ctx, "00000000-0000-4000-8000-000000000000_filtered_by_date.xlsx")
		requireAppErrorType(t, err, apierrors.ErrTypeNotFound)
	})
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, key string, r io.Reader) error {
	return m.Called(key).Error(0)
}

func (m *mockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(key).Error(0)
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	args := m.Called()
	objs, _ := args.Get(0).([]storage.ObjectInfo)
	return objs, args.Error(1)
}

func TestTimesheetService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	t.Run("upload put fails", func(t *testing.T) {
		store := new(mockStore)
		store.On("Put", mock.Anything).Return(boom).Once()
		logger, _ := testutil.NewTestLogger(t)
		svc := NewTimesheetService(store, TimesheetOptions{}, logger)

		_, err := svc.Upload(ctx, "hours.xlsx", sampleWorkbook(t))
		requireAppErrorType(t, err, apierrors.ErrTypeStorage)
		assert.ErrorIs(t, err, boom)
		store.AssertExpectations(t)
	})

	t.Run("processed file unreadable", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", ProcessedKey(testUploadID)).Return(nil, boom).Once()
		svc := NewTimesheetService(store, TimesheetOptions{}, nil)

		_, err := svc.Filter(ctx, domain.FilterRequest{UploadID: testUploadID, StartDate: "2024-01-01", EndDate: "2024-01-31"})
		requireAppErrorType(t, err, apierrors.ErrTypeStorage)
		store.AssertExpectations(t)
	})

	t.Run("processed file corrupt", func(t *testing.T) {
		store := new(mockStore)
		store.On("Get", ProcessedKey(testUploadID)).Return(io.NopCloser(strings.NewReader("garbage")), nil).Once()
		svc := NewTimesheetService(store, TimesheetOptions{}, nil)

		_, err := svc.Summary(ctx, testUploadID)
		requireAppErrorType(t, err, apierrors.ErrTypeStorage)
	})

	t.Run("delete after download failure is logged, not returned", func(t *testing.T) {
		key := FilteredKey(testUploadID)
		store := new(mockStore)
		store.On("Get", key).Return(io.NopCloser(strings.NewReader("PK")), nil).Once()
		store.On("Delete", key).Return(boom).Once()
		logger, logs := testutil.NewTestLogger(t)
		svc := NewTimesheetService(store, TimesheetOptions{DeleteAfterDownload: true}, logger)

		rc, err := svc.Download(ctx, key)
		require.NoError(t, err)
		assert.NoError(t, rc.Close())
		store.AssertExpectations(t)
		testutil.AssertLogContains(t, logs, slog.LevelWarn, "failed to delete downloaded file")
	})
}
