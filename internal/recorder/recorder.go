// Package recorder turns tab activation and navigation events into the live
// activity log.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/activitylog"
)

// StatusComplete is the navigation status that triggers recording.
const StatusComplete = "complete"

// TabUpdate is a tab navigation notification from the host.
type TabUpdate struct {
	TabID  int
	Status string
	URL    string
	Title  string
}

// Recorder maintains the current activity as focus moves between tabs.
// Events are handled one at a time in arrival order.
type Recorder struct {
	mu     sync.Mutex
	log    *activitylog.Log
	tabs   TabResolver
	filter *activity.Filter

	currentTab int
	hasCurrent bool

	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// New creates a Recorder writing to log.
func New(log *activitylog.Log, tabs TabResolver, filter *activity.Filter, logger *slog.Logger) *Recorder {
	if filter == nil {
		filter = activity.DefaultFilter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log:    log,
		tabs:   tabs,
		filter: filter,
		Now:    time.Now,
		NewID:  uuid.NewString,
		Logger: logger,
	}
}

// CurrentTab returns the tab the open entry belongs to.
func (r *Recorder) CurrentTab() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTab, r.hasCurrent
}

// HandleActivated records focus moving to tabID.
func (r *Recorder) HandleActivated(ctx context.Context, tabID int) error {
	tab, err := r.tabs.Tab(ctx, tabID)
	if err != nil {
		return fmt.Errorf("resolve tab: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition(ctx, tab)
}

// HandleUpdated records a navigation. Only completed navigations count, and
// a repeat of the open entry's url on the current tab is ignored.
func (r *Recorder) HandleUpdated(ctx context.Context, u TabUpdate) error {
	if u.Status != StatusComplete {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasCurrent && r.currentTab == u.TabID {
		if open, ok := r.log.Open(); ok && open.URL == u.URL {
			r.Logger.Debug("duplicate navigation ignored", "tab", u.TabID, "url", u.URL)
			return nil
		}
	}
	return r.transition(ctx, Tab{ID: u.TabID, URL: u.URL, Title: u.Title})
}

// transition closes the open entry and, unless the url is excluded, opens a
// new one for tab. Callers hold r.mu.
func (r *Recorder) transition(ctx context.Context, tab Tab) error {
	now := r.Now()

	if r.filter.Excluded(tab.URL) {
		if _, err := r.log.CloseOpen(ctx, now); err != nil {
			return err
		}
		r.hasCurrent = false
		r.Logger.Debug("excluded url, nothing recorded", "tab", tab.ID)
		return nil
	}

	domain, err := activity.Domain(tab.URL)
	if err != nil {
		if _, cerr := r.log.CloseOpen(ctx, now); cerr != nil {
			return cerr
		}
		r.hasCurrent = false
		return fmt.Errorf("tab %d: %w", tab.ID, err)
	}

	title := tab.Title
	if title == "" {
		title = domain
	}
	e := activity.Entry{
		ID:        r.NewID(),
		Domain:    domain,
		Title:     title,
		URL:       tab.URL,
		StartTime: now,
		Source:    activity.SourceLive,
	}
	if err := r.log.Transition(ctx, &e); err != nil {
		return err
	}

	r.currentTab = tab.ID
	r.hasCurrent = true
	r.Logger.Debug("activity started", "tab", tab.ID, "domain", domain)
	return nil
}
