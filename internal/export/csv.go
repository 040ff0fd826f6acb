// Package export renders activity as CSV and saves it to disk.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
)

// ErrNothingToExport is returned for an empty day.
var ErrNothingToExport = errors.New("no activities to export")

// Column sets.
var (
	Header     = []string{"Domain", "Title", "Duration (minutes)", "Start Time", "End Time", "URL"}
	LiveHeader = []string{"Date", "Time", "Duration", "Title", "Domain"}
)

// TimeLayout formats start and end columns.
const TimeLayout = "2006-01-02 15:04:05"

// Format selects the rows written.
type Format string

const (
	// FormatEntries writes one row per entry.
	FormatEntries Format = "entries"
	// FormatAggregates writes one row per domain aggregate.
	FormatAggregates Format = "aggregates"
	// FormatLive writes the compact Date,Time,Duration,Title,Domain rows.
	FormatLive Format = "live"
)

// ParseFormat validates a configured format. Empty selects FormatEntries.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatEntries:
		return FormatEntries, nil
	case FormatAggregates, FormatLive:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// writer writes CSV with every field quoted. encoding/csv only quotes when
// a field needs it.
type writer struct {
	w   io.Writer
	err error
}

func (cw *writer) row(fields ...string) {
	if cw.err != nil {
		return
	}
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
	_, cw.err = io.WriteString(cw.w, sb.String())
}

// Minutes formats a duration column: two decimals, halves away from zero.
func Minutes(v float64) string {
	return fmt.Sprintf("%.2f", activity.Round2(v))
}

// Options controls rendering.
type Options struct {
	Format   Format
	Location *time.Location
	// Now values open entries.
	Now time.Time
}

func (o Options) loc() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Entries renders entries in the given format. Aggregates must be supplied
// separately with Aggregates.
func Entries(entries []activity.Entry, opts Options) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	cw := &writer{w: &buf}
	loc, now := opts.loc(), opts.now()

	if opts.Format == FormatLive {
		cw.row(LiveHeader...)
		for _, e := range entries {
			start := e.StartTime.In(loc)
			cw.row(start.Format("2006-01-02"), start.Format("15:04:05"), Minutes(e.EffectiveDuration(now)), e.Title, e.Domain)
		}
		return buf.Bytes(), cw.err
	}

	cw.row(Header...)
	for _, e := range entries {
		end := ""
		if e.EndTime != nil {
			end = e.EndTime.In(loc).Format(TimeLayout)
		}
		cw.row(e.Domain, e.Title, Minutes(e.EffectiveDuration(now)), e.StartTime.In(loc).Format(TimeLayout), end, e.URL)
	}
	return buf.Bytes(), cw.err
}

// Aggregates renders one row per aggregate under Header.
func Aggregates(aggs []activity.DomainAggregate, opts Options) ([]byte, error) {
	if len(aggs) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	cw := &writer{w: &buf}
	loc := opts.loc()

	cw.row(Header...)
	for _, a := range aggs {
		cw.row(a.Domain, a.Title, Minutes(a.TotalTime), a.StartTime.In(loc).Format(TimeLayout), a.EndTime.In(loc).Format(TimeLayout), a.URL)
	}
	return buf.Bytes(), cw.err
}
