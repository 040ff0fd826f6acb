// Package activitylog owns the shared activity log: the in-memory copy, its
// retention policy and persistence after every mutation.
package activitylog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/storage"
)

// Log is the single writer of the activity log. Entries are kept most
// recent first. All methods are safe for concurrent use; each mutation runs
// to completion, including the save, before the next one starts.
type Log struct {
	mu      sync.Mutex
	store   storage.Store
	policy  Policy
	entries []activity.Entry

	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// New creates an empty Log over store. Call Load before use.
func New(store storage.Store, policy Policy, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		store:    store,
		policy:   policy,
		entries:  []activity.Entry{},
		Location: time.Local,
		Now:      time.Now,
		Logger:   logger,
	}
}

// Load reads the stored log and applies the retention policy. When the
// policy removed anything the trimmed log is written back.
func (l *Log) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.store.LoadActivities(ctx)
	if err != nil {
		return fmt.Errorf("load activity log: %w", err)
	}

	kept := l.policy.Apply(stored, l.Now(), l.Location)
	l.entries = kept
	if len(kept) != len(stored) {
		l.Logger.Info("retention applied on load", "stored", len(stored), "kept", len(kept))
		if err := l.store.SaveActivities(ctx, kept); err != nil {
			return fmt.Errorf("save trimmed activity log: %w", err)
		}
	}
	return nil
}

// Sync replaces the in-memory copy with the stored log, picking up writes
// made through other handles on the same store.
func (l *Log) Sync(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.store.LoadActivities(ctx)
	if err != nil {
		return fmt.Errorf("load activity log: %w", err)
	}
	l.entries = stored
	return nil
}

// Update runs fn on the stored log and persists its result in one store
// transaction, so writes from other processes are never overwritten. If fn
// or the save fails the in-memory log is left unchanged.
func (l *Log) Update(ctx context.Context, fn func([]activity.Entry) ([]activity.Entry, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.update(ctx, fn)
}

func (l *Log) update(ctx context.Context, fn func([]activity.Entry) ([]activity.Entry, error)) error {
	var next []activity.Entry
	var fnErr error
	err := l.store.UpdateActivities(ctx, func(stored []activity.Entry) ([]activity.Entry, error) {
		out, err := fn(stored)
		if err != nil {
			fnErr = err
			return nil, err
		}
		next = l.policy.truncate(out)
		return next, nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("save activity log: %w", err)
	}
	l.entries = next
	return nil
}

// CloseOpen closes the open entry, if any, at the given time and reports
// whether one was closed.
func (l *Log) CloseOpen(ctx context.Context, at time.Time) (bool, error) {
	closed := false
	err := l.Update(ctx, func(entries []activity.Entry) ([]activity.Entry, error) {
		if i := openIndex(entries); i >= 0 {
			entries[i].Close(at)
			closed = true
		}
		return entries, nil
	})
	return closed, err
}

// Transition closes the open entry at e.StartTime and prepends e, as one
// persisted step. A nil e only closes.
func (l *Log) Transition(ctx context.Context, e *activity.Entry) error {
	return l.Update(ctx, func(entries []activity.Entry) ([]activity.Entry, error) {
		at := l.Now()
		if e != nil {
			at = e.StartTime
		}
		if i := openIndex(entries); i >= 0 {
			entries[i].Close(at)
		}
		if e == nil {
			return entries, nil
		}
		return append([]activity.Entry{*e}, entries...), nil
	})
}

// CloseStale closes an open entry left over from a previous run. The entry
// is closed at its start plus maxOpen, or at now if that is earlier, so
// time the recorder was not running is not counted.
func (l *Log) CloseStale(ctx context.Context, maxOpen time.Duration) (bool, error) {
	closed := false
	err := l.Update(ctx, func(entries []activity.Entry) ([]activity.Entry, error) {
		i := openIndex(entries)
		if i < 0 {
			return entries, nil
		}
		at := l.Now()
		if limit := entries[i].StartTime.Add(maxOpen); maxOpen > 0 && limit.Before(at) {
			at = limit
		}
		entries[i].Close(at)
		closed = true
		return entries, nil
	})
	if err != nil {
		return false, err
	}
	if closed {
		l.Logger.Info("closed entry left open by a previous run")
	}
	return closed, nil
}

// Open returns the open entry, if any.
func (l *Log) Open() (activity.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := openIndex(l.entries); i >= 0 {
		return l.entries[i], true
	}
	return activity.Entry{}, false
}

// ReplaceDay swaps every closed entry that started inside day for the given
// history entries. The open entry survives because only the recorder
// closes it. The result is re-sorted most recent first.
func (l *Log) ReplaceDay(ctx context.Context, day activity.Window, replacement []activity.Entry) error {
	return l.Update(ctx, func(entries []activity.Entry) ([]activity.Entry, error) {
		next := make([]activity.Entry, 0, len(entries)+len(replacement))
		removed := 0
		for _, e := range entries {
			if day.Contains(e.StartTime) && !e.IsOpen() {
				removed++
				continue
			}
			next = append(next, e)
		}
		for _, e := range replacement {
			if e.IsOpen() {
				now := l.Now()
				e.Close(now)
			}
			next = append(next, e)
		}
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].StartTime.After(next[j].StartTime)
		})
		l.Logger.Debug("day replaced", "date", day.Date(), "removed", removed, "added", len(replacement))
		return next, nil
	})
}

// ForDay returns the entries that started within w, most recent first.
func (l *Log) ForDay(w activity.Window) []activity.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []activity.Entry{}
	for _, e := range l.entries {
		if w.Contains(e.StartTime) {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of the whole log.
func (l *Log) Entries() []activity.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Prune applies the retention policy at the current time and returns the
// number of entries removed.
func (l *Log) Prune(ctx context.Context) (int, error) {
	return l.PruneWith(ctx, l.policy)
}

// PruneWith applies p instead of the log's own policy.
func (l *Log) PruneWith(ctx context.Context, p Policy) (int, error) {
	removed := 0
	err := l.Update(ctx, func(entries []activity.Entry) ([]activity.Entry, error) {
		kept := p.Apply(entries, l.Now(), l.Location)
		removed = len(entries) - len(kept)
		return kept, nil
	})
	return removed, err
}

func (l *Log) snapshot() []activity.Entry {
	out := make([]activity.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func openIndex(entries []activity.Entry) int {
	for i := range entries {
		if entries[i].IsOpen() {
			return i
		}
	}
	return -1
}
