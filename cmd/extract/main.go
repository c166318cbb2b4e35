package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"timesheets/internal/config"
	"timesheets/internal/dataprocessing"
	"timesheets/internal/exporter"
	"timesheets/internal/infrastructure"
	"timesheets/internal/validation"
	"timesheets/pkg/contracts"
	"timesheets/pkg/contracts/domain"
)

// options are the parsed command line flags.
type options struct {
	in       string
	out      string
	xlsx     string
	summary  string
	sheet    string
	start    string
	end      string
	bom      bool
	logLevel string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "extract:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "timesheet workbook to read (.xlsx or .xlsm)")
	fs.StringVar(&opts.out, "out", "", "processed CSV to write (defaults to <in>_processed.csv)")
	fs.StringVar(&opts.xlsx, "xlsx", "", "also write the records to this workbook")
	fs.StringVar(&opts.summary, "summary", "", "write per-activity statistics to this CSV")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet to parse (defaults to the first)")
	fs.StringVar(&opts.start, "start", "", "keep entries starting on or after this date")
	fs.StringVar(&opts.end, "end", "", "keep entries starting on or before this date")
	fs.BoolVar(&opts.bom, "bom", false, "prefix the CSV with a UTF-8 byte order mark")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if *showVersion {
		fmt.Fprintln(stderr, contracts.GetFullVersionString())
		return opts, flag.ErrHelp
	}

	if opts.in == "" {
		fs.Usage()
		return opts, errors.New("-in is required")
	}
	if (opts.start == "") != (opts.end == "") {
		return opts, errors.New("-start and -end must be given together")
	}
	if opts.out == "" {
		opts.out = strings.TrimSuffix(opts.in, filepath.Ext(opts.in)) + "_processed.csv"
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := infrastructure.NewLogger(stderr, config.LoggingConfig{
		Level:  opts.logLevel,
		Format: "text",
	})

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateWorkbookFile(opts.in); err != nil {
		return err
	}
	for _, path := range []string{opts.out, opts.xlsx, opts.summary} {
		if path == "" {
			continue
		}
		if err := validator.ValidateOutputDirectory(filepath.Dir(path)); err != nil {
			return err
		}
	}

	table, err := parseFile(opts.in, opts.sheet)
	if table != nil {
		for _, s := range table.Skipped {
			logger.WarnContext(ctx, "row skipped",
				slog.Int("row", s.Row+1),
				slog.String("reason", string(s.Reason)),
				slog.String("detail", s.Detail))
		}
	}
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "workbook parsed",
		slog.String("file", opts.in),
		slog.Int("entries", table.Len()),
		slog.Int("blocks", table.Blocks),
		slog.Int("skipped", len(table.Skipped)))

	// filtering starts a fresh table; the skip count belongs to the parse
	skipped := len(table.Skipped)
	if opts.start != "" {
		table, err = dataprocessing.FilterByDateRange(table, opts.start, opts.end)
		if err != nil {
			return err
		}
	}

	if err := writeFile(opts.out, func(w io.Writer) error {
		return exporter.WriteCSV(w, table, exporter.CSVOptions{BOMPrefix: opts.bom})
	}); err != nil {
		return err
	}
	if opts.xlsx != "" {
		if err := writeFile(opts.xlsx, func(w io.Writer) error {
			return exporter.WriteXLSX(w, table)
		}); err != nil {
			return err
		}
	}

	summaries, err := dataprocessing.NewSummarizer(logger).Summarize(ctx, table)
	if err != nil {
		return err
	}
	if opts.summary != "" {
		if err := writeFile(opts.summary, func(w io.Writer) error {
			return dataprocessing.WriteSummaryCSV(w, summaries)
		}); err != nil {
			return err
		}
	}

	return printSummary(stdout, opts, table, skipped, summaries)
}

func parseFile(path, sheet string) (*domain.RecordTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataprocessing.ParseWorkbook(f, sheet)
}

// writeFile creates path and hands it to write. A failed write removes the
// partial file.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(w io.Writer, opts options, table *domain.RecordTable, skipped int, summaries []domain.ActivitySummary) error {
	fmt.Fprintf(w, "%d entries in %d activity blocks, %.2f hours\n",
		table.Len(), table.Blocks, table.TotalHours())
	if opts.start != "" {
		fmt.Fprintf(w, "date range: %s to %s\n", opts.start, opts.end)
	}
	if skipped > 0 {
		fmt.Fprintf(w, "%d rows skipped\n", skipped)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVITY\tENTRIES\tHOURS\tMEAN\tMAX")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n",
			s.Activity, s.Entries, s.TotalHours, s.MeanHours, s.MaxHours)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "wrote %s\n", opts.out)
	if opts.xlsx != "" {
		fmt.Fprintf(w, "wrote %s\n", opts.xlsx)
	}
	if opts.summary != "" {
		fmt.Fprintf(w, "wrote %s\n", opts.summary)
	}
	return nil
}
