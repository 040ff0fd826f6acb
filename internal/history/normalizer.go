package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/timesheet/internal/activity"
)

const (
	// DefaultVisitCap bounds the minutes attributed to one visit.
	DefaultVisitCap = 30 * time.Minute
	// DefaultMaxResults is the history search result limit.
	DefaultMaxResults = 10000
)

// Normalizer turns browser history into ordered activity entries for a day.
type Normalizer struct {
	Source     Source
	Filter     *activity.Filter
	Cap        time.Duration
	MaxResults int
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewNormalizer returns a Normalizer with default cap, limits and clock.
func NewNormalizer(src Source, filter *activity.Filter, logger *slog.Logger) *Normalizer {
	if filter == nil {
		filter = activity.DefaultFilter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		Source:     src,
		Filter:     filter,
		Cap:        DefaultVisitCap,
		MaxResults: DefaultMaxResults,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Normalize returns the entries whose visit time falls in day, sorted
// most recent first. A failure on one history item is logged and skipped.
func (n *Normalizer) Normalize(ctx context.Context, day activity.Window) ([]activity.Entry, error) {
	if r, ok := n.Source.(Refresher); ok {
		if err := r.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh history: %w", err)
		}
	}
	now := n.Now()

	// Items are found by last visit time, so earlier visits of a URL last
	// seen the day after still need the wider window.
	search := day.Widen(24 * time.Hour)
	items, err := n.Source.Search(ctx, Query{
		StartTime:  search.Start,
		EndTime:    search.End,
		MaxResults: n.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}

	n.Logger.Debug("history search", "day", day.Date(), "items", len(items))

	var entries []activity.Entry
	for _, item := range items {
		if n.Filter.Excluded(item.URL) {
			continue
		}
		expanded, err := n.expand(ctx, item, day, now)
		if err != nil {
			n.Logger.Warn("skip history item", "url", item.URL, "err", err)
			continue
		}
		entries = append(entries, expanded...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})

	n.Logger.Debug("history normalized", "day", day.Date(), "entries", len(entries))
	return entries, nil
}

// expand converts the visits of one URL into entries. The end of each visit
// is the next visit of the same URL, or now for the last one.
func (n *Normalizer) expand(ctx context.Context, item Item, day activity.Window, now time.Time) ([]activity.Entry, error) {
	domain, err := activity.Domain(item.URL)
	if err != nil {
		return nil, err
	}

	visits, err := n.Source.Visits(ctx, item.URL)
	if err != nil {
		return nil, fmt.Errorf("get visits: %w", err)
	}
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].VisitTime.Before(visits[j].VisitTime)
	})

	title := item.Title
	if title == "" {
		title = domain
	}
	visitCount := item.VisitCount
	if visitCount == 0 {
		visitCount = 1
	}

	var entries []activity.Entry
	for i, v := range visits {
		if !day.Contains(v.VisitTime) {
			continue
		}
		end := now
		if i+1 < len(visits) {
			end = visits[i+1].VisitTime
		}
		entries = append(entries, activity.Entry{
			ID:         uuid.NewString(),
			Domain:     domain,
			Title:      title,
			URL:        item.URL,
			StartTime:  v.VisitTime,
			EndTime:    &end,
			Duration:   n.capped(v.VisitTime, end),
			Source:     activity.SourceHistory,
			VisitCount: visitCount,
		})
	}
	return entries, nil
}

func (n *Normalizer) capped(start, end time.Time) float64 {
	d := activity.MinutesBetween(start, end)
	if limit := n.Cap.Minutes(); n.Cap > 0 && d > limit {
		return limit
	}
	return d
}
