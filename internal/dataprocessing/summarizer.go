package dataprocessing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/montanaflynn/stats"

	"timesheets/pkg/contracts/domain"
)

// Summarizer aggregates a record table per activity.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer. A nil logger falls back to slog.Default.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger}
}

// Summarize returns one summary per activity, in first-appearance order.
// Hour figures are rounded to two decimals.
func (s *Summarizer) Summarize(ctx context.Context, table *domain.RecordTable) ([]domain.ActivitySummary, error) {
	if table.Len() == 0 {
		return []domain.ActivitySummary{}, nil
	}

	groups := make(map[string][]domain.Entry)
	for _, e := range table.Entries {
		groups[e.Activity] = append(groups[e.Activity], e)
	}

	out := make([]domain.ActivitySummary, 0, len(groups))
	for _, activity := range table.Activities() {
		summary, err := summarizeActivity(activity, groups[activity])
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to summarize activity",
				slog.String("activity", activity),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("summarize activity %s: %w", activity, err)
		}
		out = append(out, summary)
	}

	s.logger.DebugContext(ctx, "summarized activities",
		slog.Int("activities", len(out)),
		slog.Int("entries", table.Len()))
	return out, nil
}

func summarizeActivity(activity string, entries []domain.Entry) (domain.ActivitySummary, error) {
	hours := make(stats.Float64Data, len(entries))
	first, last := entries[0].StartDate, entries[0].StartDate
	for i, e := range entries {
		hours[i] = e.DecimalHours
		if e.StartDate.Before(first) {
			first = e.StartDate
		}
		if e.StartDate.After(last) {
			last = e.StartDate
		}
	}

	sum, err := hours.Sum()
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	mean, err := hours.Mean()
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	median, err := hours.Median()
	if err != nil {
		return domain.ActivitySummary{}, err
	}
	max, err := hours.Max()
	if err != nil {
		return domain.ActivitySummary{}, err
	}

	return domain.ActivitySummary{
		Activity:    activity,
		Entries:     len(entries),
		TotalHours:  round2(sum),
		MeanHours:   round2(mean),
		MedianHours: round2(median),
		MaxHours:    max,
		FirstStart:  first,
		LastStart:   last,
	}, nil
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}

// WriteSummaryCSV writes summaries with a header row.
func WriteSummaryCSV(w io.Writer, summaries []domain.ActivitySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Activity", "Entries", "Total Hours", "Mean Hours", "Median Hours", "Max Hours", "First Start", "Last Start"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Activity,
			strconv.Itoa(s.Entries),
			strconv.FormatFloat(s.TotalHours, 'f', 2, 64),
			strconv.FormatFloat(s.MeanHours, 'f', 2, 64),
			strconv.FormatFloat(s.MedianHours, 'f', 2, 64),
			strconv.FormatFloat(s.MaxHours, 'f', 2, 64),
			FormatStartDate(s.FirstStart),
			FormatStartDate(s.LastStart),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
