package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the timesheet service and the
// HTTP layer.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	UploadsTotal    metric.Int64Counter
	ParseDuration   metric.Float64Histogram
	EntriesExtract  metric.Int64Counter
	RowsSkipped     metric.Int64Counter
	FiltersTotal    metric.Int64Counter
	DownloadsTotal  metric.Int64Counter
	ObjectsSwept    metric.Int64Counter
	StorageFailures metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests"},
		{&m.UploadsTotal, "timesheet_uploads_total", "Workbooks received, by outcome"},
		{&m.EntriesExtract, "timesheet_entries_extracted_total", "Entries extracted from uploaded workbooks"},
		{&m.RowsSkipped, "timesheet_rows_skipped_total", "Data rows skipped while parsing, by reason"},
		{&m.FiltersTotal, "timesheet_filters_total", "Date range filters applied, by outcome"},
		{&m.DownloadsTotal, "timesheet_downloads_total", "Files served for download"},
		{&m.ObjectsSwept, "storage_objects_swept_total", "Stored objects removed by the retention sweeper"},
		{&m.StorageFailures, "storage_failures_total", "Failed storage operations, by operation"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.ParseDuration, err = meter.Float64Histogram(
		"timesheet_parse_duration_seconds",
		metric.WithDescription("Time spent reading and parsing a workbook"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordUpload records the outcome of one upload.
func (m *Metrics) RecordUpload(ctx context.Context, outcome string, took time.Duration, entries int, skipped map[string]int) {
	if m == nil {
		return
	}
	m.UploadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.ParseDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	m.EntriesExtract.Add(ctx, int64(entries))
	for reason, n := range skipped {
		m.RowsSkipped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordFilter records the outcome of one date range filter.
func (m *Metrics) RecordFilter(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.FiltersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDownload counts a served file.
func (m *Metrics) RecordDownload(ctx context.Context) {
	if m == nil {
		return
	}
	m.DownloadsTotal.Add(ctx, 1)
}

// RecordSweep counts objects removed by the sweeper.
func (m *Metrics) RecordSweep(ctx context.Context, removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.ObjectsSwept.Add(ctx, int64(removed))
}

// RecordStorageFailure counts a failed storage call.
func (m *Metrics) RecordStorageFailure(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.StorageFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
