// Package service implements the user-facing commands on top of the
// activity log. Every command returns a Response; errors never escape.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/activitylog"
	"github.com/runnerr0/timesheet/internal/aggregate"
	"github.com/runnerr0/timesheet/internal/export"
	"github.com/runnerr0/timesheet/internal/history"
	"github.com/runnerr0/timesheet/internal/storage"
	"github.com/runnerr0/timesheet/internal/summarize"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the result shape of every command.
type Response struct {
	Status     string               `json:"status"`
	Message    string               `json:"message,omitempty"`
	Date       string               `json:"date,omitempty"`
	Summary    string               `json:"summary,omitempty"`
	Timesheet  *summarize.Timesheet `json:"timesheet,omitempty"`
	DownloadID string               `json:"downloadId,omitempty"`
	Entries    int                  `json:"entries,omitempty"`
}

// OK reports whether the command succeeded.
func (r Response) OK() bool { return r.Status == StatusSuccess }

func failure(date string, err error) Response {
	return Response{Status: StatusError, Date: date, Message: err.Error()}
}

// Service wires the log to export, summarization and history reload.
type Service struct {
	Log        *activitylog.Log
	Store      storage.Store
	Summarizer *summarize.Summarizer
	// Normalizer reloads days from history. Its Source may be nil when only
	// uploaded snapshots are available.
	Normalizer *history.Normalizer
	// AutoReload rebuilds the requested day from Normalizer.Source before
	// export and summarize.
	AutoReload bool
	// SummarizeEntries sends the day's raw entries to the summarizer
	// instead of aggregates.
	SummarizeEntries bool

	Downloader   export.Downloader
	ExportFormat export.Format
	Key          aggregate.Key
	Order        aggregate.Order
	Location     *time.Location
	Now          func() time.Time
	Logger       *slog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loc() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Day resolves a YYYY-MM-DD date, empty meaning today.
func (s *Service) Day(date string) (activity.Window, error) {
	w, err := activity.ParseDay(date, s.now(), s.loc())
	if err != nil {
		return activity.Window{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return w, nil
}

// Aggregates returns the day's aggregates in the configured key and order.
func (s *Service) Aggregates(day activity.Window) []activity.DomainAggregate {
	return aggregate.Aggregate(s.Log.ForDay(day), aggregate.Options{
		Window: day,
		Key:    s.Key,
		Order:  s.Order,
		Now:    s.now(),
	})
}

// prepare brings the log up to date before a command reads the day. A
// failed history reload is logged and the stored log is used as is.
func (s *Service) prepare(ctx context.Context, day activity.Window) error {
	if s.AutoReload && s.Normalizer != nil && s.Normalizer.Source != nil {
		if resp := s.ReloadDay(ctx, day.Date()); !resp.OK() {
			s.logger().Warn("reload before command", "date", day.Date(), "err", resp.Message)
		}
	}
	return s.Log.Sync(ctx)
}

// Export writes the day's CSV through the downloader.
func (s *Service) Export(ctx context.Context, date string) Response {
	day, err := s.Day(date)
	if err != nil {
		return failure(date, err)
	}
	if err := s.prepare(ctx, day); err != nil {
		return failure(day.Date(), err)
	}
	if s.Downloader == nil {
		return failure(day.Date(), errors.New("export is not configured"))
	}

	opts := export.Options{Format: s.ExportFormat, Location: s.loc(), Now: s.now()}
	var data []byte
	var rows int
	if s.ExportFormat == export.FormatAggregates {
		aggs := s.Aggregates(day)
		rows = len(aggs)
		data, err = export.Aggregates(aggs, opts)
	} else {
		entries := s.Log.ForDay(day)
		rows = len(entries)
		data, err = export.Entries(entries, opts)
	}
	if errors.Is(err, export.ErrNothingToExport) {
		return failure(day.Date(), fmt.Errorf("no activities to export for %s", day.Date()))
	}
	if err != nil {
		return failure(day.Date(), fmt.Errorf("export failed: %w", err))
	}

	id, err := s.Downloader.Download(data, export.Filename(day.Start))
	if err != nil {
		s.logger().Error("export download failed", "date", day.Date(), "err", err)
		return failure(day.Date(), fmt.Errorf("export failed: %w", err))
	}

	s.logger().Info("exported", "date", day.Date(), "rows", rows, "id", id)
	return Response{Status: StatusSuccess, Date: day.Date(), DownloadID: id, Entries: rows}
}

// Summarize aggregates the day and asks the summarizer for a timesheet. A
// successful result is cached in the store.
func (s *Service) Summarize(ctx context.Context, date string) Response {
	day, err := s.Day(date)
	if err != nil {
		return failure(date, err)
	}
	if err := s.prepare(ctx, day); err != nil {
		return failure(day.Date(), err)
	}

	var res *summarize.Result
	var count int
	if s.SummarizeEntries {
		entries := s.Log.ForDay(day)
		count = len(entries)
		res, err = s.Summarizer.SummarizeEntries(ctx, entries)
	} else {
		aggs := s.Aggregates(day)
		count = len(aggs)
		res, err = s.Summarizer.Summarize(ctx, aggs)
	}
	switch {
	case errors.Is(err, summarize.ErrNoActivities):
		return failure(day.Date(), fmt.Errorf("no activities to summarize for %s", day.Date()))
	case errors.Is(err, summarize.ErrNotConfigured):
		return failure(day.Date(), err)
	case err != nil:
		s.logger().Error("summarize failed", "date", day.Date(), "err", err)
		return failure(day.Date(), fmt.Errorf("unable to generate timesheet summary: %w", err))
	}

	text := res.Render()
	if s.Store != nil {
		if err := s.Store.SaveSummary(ctx, storage.Summary{Date: day.Date(), Text: text, CreatedAt: s.now()}); err != nil {
			s.logger().Warn("cache summary", "err", err)
		}
	}

	return Response{
		Status:    StatusSuccess,
		Date:      day.Date(),
		Summary:   text,
		Timesheet: res.Timesheet,
		Entries:   count,
	}
}

// CachedSummary returns the last stored summary.
func (s *Service) CachedSummary(ctx context.Context) Response {
	if s.Store == nil {
		return failure("", errors.New("no summary cached"))
	}
	sum, err := s.Store.LoadSummary(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return failure("", errors.New("no summary cached"))
	}
	if err != nil {
		return failure("", err)
	}
	return Response{Status: StatusSuccess, Date: sum.Date, Summary: sum.Text}
}

// ReloadDay rebuilds the day from the configured history source.
func (s *Service) ReloadDay(ctx context.Context, date string) Response {
	if s.Normalizer == nil || s.Normalizer.Source == nil {
		return failure(date, errors.New("no history source configured"))
	}
	return s.ReloadDayFrom(ctx, date, s.Normalizer.Source)
}

// ReloadDayFrom rebuilds the day from src. Closed entries of that day are
// replaced by the normalized history.
func (s *Service) ReloadDayFrom(ctx context.Context, date string, src history.Source) Response {
	day, err := s.Day(date)
	if err != nil {
		return failure(date, err)
	}

	n := history.NewNormalizer(src, nil, s.logger())
	if s.Normalizer != nil {
		copied := *s.Normalizer
		copied.Source = src
		n = &copied
	}

	entries, err := n.Normalize(ctx, day)
	if err != nil {
		return failure(day.Date(), fmt.Errorf("load history: %w", err))
	}
	if err := s.Log.ReplaceDay(ctx, day, entries); err != nil {
		return failure(day.Date(), fmt.Errorf("store history: %w", err))
	}

	s.logger().Info("day reloaded from history", "date", day.Date(), "entries", len(entries))
	return Response{Status: StatusSuccess, Date: day.Date(), Entries: len(entries)}
}
