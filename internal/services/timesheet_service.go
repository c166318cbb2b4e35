package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"timesheets/internal/dataprocessing"
	apierrors "timesheets/internal/errors"
	"timesheets/internal/exporter"
	"timesheets/internal/infrastructure"
	"timesheets/internal/storage"
	"timesheets/internal/validation"
	"timesheets/pkg/contracts/domain"
)

// Object key suffixes. Every key starts with the upload id.
const (
	processedSuffix = "_processed.csv"
	filteredSuffix  = "_filtered_by_date.xlsx"
)

// Filter and upload outcomes reported to metrics.
const (
	outcomeOK          = "ok"
	outcomeEmpty       = "empty"
	outcomeInvalid     = "invalid"
	outcomeNotFound    = "not_found"
	outcomeUnreadable  = "unreadable"
	outcomeStorageFail = "storage_error"
)

// TimesheetOptions configures a TimesheetService.
type TimesheetOptions struct {
	// Sheet is the worksheet to parse; empty selects the first.
	Sheet               string
	DeleteAfterDownload bool
	Metrics             *infrastructure.Metrics
	Tracer              trace.Tracer
}

// TimesheetService runs the upload, filter and download flow on top of a
// Store.
type TimesheetService struct {
	store      storage.Store
	opts       TimesheetOptions
	summarizer *dataprocessing.Summarizer
	tracer     trace.Tracer
	logger     *slog.Logger
	newID      func() string
}

// NewTimesheetService creates the service.
func NewTimesheetService(store storage.Store, opts TimesheetOptions, logger *slog.Logger) *TimesheetService {
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.InstrumentationName)
	}
	logger = logger.With(slog.String("component", "timesheet_service"))
	return &TimesheetService{
		store:      store,
		opts:       opts,
		summarizer: dataprocessing.NewSummarizer(logger),
		tracer:     tracer,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// ProcessedKey is the key of the record table derived from an upload.
func ProcessedKey(uploadID string) string { return uploadID + processedSuffix }

// FilteredKey is the key of the filtered workbook of an upload.
func FilteredKey(uploadID string) string { return uploadID + filteredSuffix }

// Upload stores the workbook, parses it and stores the resulting record
// table. The returned summary carries the id later calls refer to.
func (s *TimesheetService) Upload(ctx context.Context, filename string, r io.Reader) (*domain.UploadSummary, error) {
	ctx, span := s.tracer.Start(ctx, "timesheet.upload",
		trace.WithAttributes(attribute.String("upload.filename", filename)))
	defer span.End()
	started := time.Now()

	name := validation.SecureFilename(filename)
	if name == "" {
		return nil, s.failUpload(ctx, span, started, outcomeInvalid,
			apierrors.NewAppValidationError("file name is empty after sanitising").WithContext("field", "file"))
	}
	if err := validation.CheckExtension(name); err != nil {
		return nil, s.failUpload(ctx, span, started, outcomeInvalid,
			apierrors.NewAppError(apierrors.ErrTypeValidation, "file type not allowed", err).WithContext("field", "file"))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, s.failUpload(ctx, span, started, outcomeUnreadable, err)
	}

	id := s.newID()
	span.SetAttributes(attribute.String("upload.id", id))
	logger := s.logger.With(slog.String("upload_id", id))

	if err := s.store.Put(ctx, id+"_"+name, bytes.NewReader(data)); err != nil {
		s.opts.Metrics.RecordStorageFailure(ctx, "put")
		return nil, s.failUpload(ctx, span, started, outcomeStorageFail,
			apierrors.NewStorageError("failed to store upload", err))
	}

	table, err := s.parse(ctx, data)
	if err != nil {
		outcome := outcomeUnreadable
		if errors.Is(err, dataprocessing.ErrEmptyResult) {
			outcome = outcomeEmpty
		}
		if table != nil {
			s.logSkipped(ctx, logger, table.Skipped)
		}
		logger.WarnContext(ctx, "upload produced nothing to export",
			slog.String("filename", name),
			slog.String("error", err.Error()))
		return nil, s.failUpload(ctx, span, started, outcome, err)
	}
	s.logSkipped(ctx, logger, table.Skipped)

	var buf bytes.Buffer
	if err := exporter.WriteCSV(&buf, table, exporter.CSVOptions{}); err != nil {
		return nil, s.failUpload(ctx, span, started, outcomeStorageFail,
			apierrors.NewStorageError("failed to encode record table", err))
	}
	if err := s.store.Put(ctx, ProcessedKey(id), &buf); err != nil {
		s.opts.Metrics.RecordStorageFailure(ctx, "put")
		return nil, s.failUpload(ctx, span, started, outcomeStorageFail,
			apierrors.NewStorageError("failed to store record table", err))
	}

	s.opts.Metrics.RecordUpload(ctx, outcomeOK, time.Since(started), table.Len(), skipCounts(table.Skipped))
	logger.InfoContext(ctx, "upload processed",
		slog.String("filename", name),
		slog.Int("entries", table.Len()),
		slog.Int("blocks", table.Blocks),
		slog.Int("skipped", len(table.Skipped)),
		slog.Duration("took", time.Since(started)))

	return &domain.UploadSummary{
		UploadID:   id,
		Filename:   name,
		Entries:    table.Len(),
		Blocks:     table.Blocks,
		Activities: table.Activities(),
		TotalHours: table.TotalHours(),
		Skipped:    table.Skipped,
	}, nil
}

func (s *TimesheetService) parse(ctx context.Context, data []byte) (*domain.RecordTable, error) {
	_, span := s.tracer.Start(ctx, "timesheet.parse")
	defer span.End()

	rows, err := dataprocessing.ReadWorkbook(bytes.NewReader(data), s.opts.Sheet)
	if err != nil {
		return nil, apierrors.NewParsingError("the file could not be read as a workbook", err)
	}
	span.SetAttributes(attribute.Int("parse.rows", len(rows)))

	table, err := dataprocessing.Parse(rows)
	if table != nil {
		span.SetAttributes(
			attribute.Int("parse.entries", table.Len()),
			attribute.Int("parse.skipped", len(table.Skipped)))
	}
	return table, err
}

func (s *TimesheetService) failUpload(ctx context.Context, span trace.Span, started time.Time, outcome string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	s.opts.Metrics.RecordUpload(ctx, outcome, time.Since(started), 0, nil)
	return err
}

func (s *TimesheetService) logSkipped(ctx context.Context, logger *slog.Logger, skipped []domain.SkippedRow) {
	for _, sk := range skipped {
		logger.DebugContext(ctx, "row skipped",
			slog.Int("row", sk.Row),
			slog.String("reason", string(sk.Reason)),
			slog.String("detail", sk.Detail))
	}
}

func skipCounts(skipped []domain.SkippedRow) map[string]int {
	if len(skipped) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, sk := range skipped {
		out[string(sk.Reason)]++
	}
	return out
}

// Filter exports the entries of an upload whose start date lies in the
// requested range to a workbook.
func (s *TimesheetService) Filter(ctx context.Context, req domain.FilterRequest) (*domain.FilterResult, error) {
	ctx, span := s.tracer.Start(ctx, "timesheet.filter", trace.WithAttributes(
		attribute.String("upload.id", req.UploadID),
		attribute.String("filter.start", req.StartDate),
		attribute.String("filter.end", req.EndDate)))
	defer span.End()

	table, err := s.Table(ctx, req.UploadID)
	if err != nil {
		return nil, s.failFilter(ctx, span, err)
	}

	filtered, err := dataprocessing.FilterByDateRange(table, req.StartDate, req.EndDate)
	if err != nil {
		return nil, s.failFilter(ctx, span, err)
	}

	var buf bytes.Buffer
	if err := exporter.WriteXLSX(&buf, filtered); err != nil {
		return nil, s.failFilter(ctx, span, apierrors.NewStorageError("failed to encode filtered workbook", err))
	}
	key := FilteredKey(req.UploadID)
	if err := s.store.Put(ctx, key, &buf); err != nil {
		s.opts.Metrics.RecordStorageFailure(ctx, "put")
		return nil, s.failFilter(ctx, span, apierrors.NewStorageError("failed to store filtered workbook", err))
	}

	s.opts.Metrics.RecordFilter(ctx, outcomeOK)
	s.logger.InfoContext(ctx, "filtered workbook written",
		slog.String("upload_id", req.UploadID),
		slog.String("start_date", req.StartDate),
		slog.String("end_date", req.EndDate),
		slog.Int("entries", filtered.Len()))

	return &domain.FilterResult{
		UploadID:   req.UploadID,
		Filename:   key,
		Entries:    filtered.Len(),
		TotalHours: filtered.TotalHours(),
	}, nil
}

func (s *TimesheetService) failFilter(ctx context.Context, span trace.Span, err error) error {
	outcome := outcomeStorageFail
	switch {
	case errors.Is(err, dataprocessing.ErrInvalidDate), isAppErrorType(err, apierrors.ErrTypeValidation):
		outcome = outcomeInvalid
	case errors.Is(err, dataprocessing.ErrEmptyFilterResult):
		outcome = outcomeEmpty
	case isAppErrorType(err, apierrors.ErrTypeNotFound):
		outcome = outcomeNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	s.opts.Metrics.RecordFilter(ctx, outcome)
	s.logger.WarnContext(ctx, "filter failed",
		slog.String("outcome", outcome),
		slog.String("error", err.Error()))
	return err
}

// Table loads the processed record table of an upload.
func (s *TimesheetService) Table(ctx context.Context, uploadID string) (*domain.RecordTable, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return nil, apierrors.NewAppError(apierrors.ErrTypeValidation, "unique_id must be a valid UUID", err).
			WithContext("field", "unique_id")
	}

	rc, err := s.store.Get(ctx, ProcessedKey(uploadID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierrors.NewNotFoundError("processed file").WithContext("unique_id", uploadID)
	}
	if err != nil {
		s.opts.Metrics.RecordStorageFailure(ctx, "get")
		return nil, apierrors.NewStorageError("failed to load processed file", err)
	}
	defer rc.Close()

	table, err := exporter.ReadCSV(rc)
	if err != nil {
		return nil, apierrors.NewStorageError("processed file is corrupt", err)
	}
	return table, nil
}

// Summary aggregates the processed table of an upload per activity.
func (s *TimesheetService) Summary(ctx context.Context, uploadID string) ([]domain.ActivitySummary, error) {
	table, err := s.Table(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	return s.summarizer.Summarize(ctx, table)
}

// Download opens a filtered workbook. When DeleteAfterDownload is set the
// object is removed once the caller closes the reader.
func (s *TimesheetService) Download(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := storage.ValidateKey(filename); err != nil || !strings.HasSuffix(filename, filteredSuffix) {
		return nil, apierrors.NewAppValidationError("invalid download file name").WithContext("filename", filename)
	}

	rc, err := s.store.Get(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierrors.NewNotFoundError("file").WithContext("filename", filename)
	}
	if err != nil {
		s.opts.Metrics.RecordStorageFailure(ctx, "get")
		return nil, apierrors.NewStorageError("failed to open file", err)
	}

	s.opts.Metrics.RecordDownload(ctx)
	if !s.opts.DeleteAfterDownload {
		return rc, nil
	}
	return &deleteOnClose{
		ReadCloser: rc,
		ctx:        context.WithoutCancel(ctx),
		key:        filename,
		service:    s,
	}, nil
}

type deleteOnClose struct {
	io.ReadCloser
	ctx     context.Context
	key     string
	service *TimesheetService
}

func (d *deleteOnClose) Close() error {
	err := d.ReadCloser.Close()
	if derr := d.service.store.Delete(d.ctx, d.key); derr != nil {
		d.service.opts.Metrics.RecordStorageFailure(d.ctx, "delete")
		d.service.logger.WarnContext(d.ctx, "failed to delete downloaded file",
			slog.String("filename", d.key),
			slog.String("error", derr.Error()))
	}
	return err
}

func isAppErrorType(err error, t apierrors.ErrorType) bool {
	var appErr *apierrors.AppError
	return errors.As(err, &appErr) && appErr.Type == t
}
