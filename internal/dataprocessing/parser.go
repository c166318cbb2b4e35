package dataprocessing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apierrors "timesheets/internal/errors"
	"timesheets/pkg/contracts/domain"
)

// activityPattern identifies a marker row: a letter, a hyphen and a digit
// anywhere in the first cell, e.g. "EC-1 Foundation works".
var activityPattern = regexp.MustCompile(`[a-zA-Z]-\d`)

const (
	// HeaderSentinel is the first cell of the column-header line repeated
	// inside every activity block.
	HeaderSentinel = "Started By"
	// TotalMarker appears in the first cell of a block summary line.
	TotalMarker = "Total"
)

type parseState int

const (
	stateIdle parseState = iota
	stateCollecting
)

// pendingEntry is an entry waiting in the open block. missing names the
// first blank field, if any; such entries are dropped at assembly.
type pendingEntry struct {
	row     int
	entry   domain.Entry
	missing string
}

// blockParser holds the state of a single parse. It is never shared.
type blockParser struct {
	state    parseState
	registry activityRegistry
	label    string
	pending  []pendingEntry
	blocks   [][]pendingEntry
	markers  int
	skipped  []domain.SkippedRow
}

func newBlockParser() *blockParser {
	return &blockParser{
		state:    stateIdle,
		registry: make(activityRegistry),
	}
}

// Parse partitions rows into activity blocks and returns the flattened
// record table. Rows are consumed once, in order.
//
// Data rows that cannot be read are recorded in RecordTable.Skipped and do
// not stop the parse. When nothing can be exported the error wraps
// ErrEmptyResult and the returned table still carries the skipped rows.
func Parse(rows []domain.Row) (*domain.RecordTable, error) {
	p := newBlockParser()
	for i, row := range rows {
		p.step(i, row)
	}
	p.flush()
	return p.assemble()
}

func (p *blockParser) step(index int, row domain.Row) {
	marker, ok := row.Cell(domain.ColumnMarker)
	if !ok || marker == "" {
		return
	}

	switch {
	case activityPattern.MatchString(marker):
		label := p.registry.resolve(marker)
		if p.state == stateCollecting {
			p.flush()
		}
		p.markers++
		p.label = label
		p.pending = nil
		p.state = stateCollecting

	case p.state != stateCollecting:
		// no block open yet

	case marker == HeaderSentinel:
		// column header line

	case strings.Contains(marker, TotalMarker):
		p.flush()

	default:
		p.collect(index, row)
	}
}

// collect turns a data line into a pending entry of the open block.
func (p *blockParser) collect(index int, row domain.Row) {
	startText, okDate := row.Cell(domain.ColumnStartDate)
	durationText, okDuration := row.Cell(domain.ColumnDuration)
	if !okDate || !okDuration {
		col := domain.ColumnStartDate
		if okDate {
			col = domain.ColumnDuration
		}
		p.skip(index, domain.SkipMissingCell, fmt.Sprintf("row has no column %d", col))
		return
	}

	pe := pendingEntry{
		row:   index,
		entry: domain.Entry{Activity: p.label, Duration: durationText},
	}

	if startText == "" {
		pe.missing = "start date"
	} else {
		start, _, err := ParseDate(startText)
		if err != nil {
			p.skip(index, domain.SkipMalformedDate, err.Error())
			return
		}
		pe.entry.StartDate = start
	}

	if durationText == "" {
		if pe.missing == "" {
			pe.missing = "duration"
		}
	} else {
		d, err := ParseDuration(durationText)
		if err != nil {
			p.skip(index, domain.SkipMalformedDuration, err.Error())
			return
		}
		pe.entry.DecimalHours = DecimalHours(d)
		if isSerialNumber(durationText) {
			pe.entry.Duration = FormatClock(d)
		}
	}

	p.pending = append(p.pending, pe)
}

// flush closes the pending entries of the open block, if there are any.
// The parser stays in its current state.
func (p *blockParser) flush() {
	if len(p.pending) == 0 {
		return
	}
	p.blocks = append(p.blocks, p.pending)
	p.pending = nil
}

func (p *blockParser) skip(index int, reason domain.SkipReason, detail string) {
	p.skipped = append(p.skipped, domain.SkippedRow{Row: index, Reason: reason, Detail: detail})
}

// assemble concatenates flushed blocks in order and drops incomplete entries.
func (p *blockParser) assemble() (*domain.RecordTable, error) {
	table := &domain.RecordTable{}
	for _, block := range p.blocks {
		retained := 0
		for _, pe := range block {
			if pe.missing != "" {
				p.skip(pe.row, domain.SkipNullField, pe.missing+" is empty")
				continue
			}
			table.Entries = append(table.Entries, pe.entry)
			retained++
		}
		if retained > 0 {
			table.Blocks++
		}
	}

	sort.SliceStable(p.skipped, func(i, j int) bool { return p.skipped[i].Row < p.skipped[j].Row })
	table.Skipped = p.skipped

	if p.markers == 0 {
		return table, apierrors.NewParsingError("no activity marker row found", ErrEmptyResult)
	}
	if len(table.Entries) == 0 {
		return table, apierrors.NewParsingError("activity blocks contain no complete entries", ErrEmptyResult)
	}
	return table, nil
}
