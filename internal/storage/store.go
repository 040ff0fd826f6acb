package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
)

// Store persists the activity log and the cached summary.
type Store interface {
	// LoadActivities returns the stored entries, most recent first.
	LoadActivities(ctx context.Context) ([]activity.Entry, error)
	// SaveActivities replaces the stored log. It either fully succeeds or
	// leaves the previous contents in place.
	SaveActivities(ctx context.Context, entries []activity.Entry) error
	// UpdateActivities reads the stored log, passes it to fn and stores the
	// result, all in one transaction. Writers in other processes are
	// serialized with it. If fn fails nothing is written.
	UpdateActivities(ctx context.Context, fn func([]activity.Entry) ([]activity.Entry, error)) error
	LoadSummary(ctx context.Context) (*Summary, error)
	SaveSummary(ctx context.Context, s Summary) error
	Stats(ctx context.Context) (*Stats, error)
	Purge(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open creates the Store for backend at path. For sqlite path is the
// database file, for badger a directory.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(path)
	case BackendBadger:
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

const topDomainLimit = 10

// computeStats derives Stats from an in-memory entry list.
func computeStats(entries []activity.Entry) *Stats {
	stats := &Stats{TotalEntries: int64(len(entries))}
	byDomain := make(map[string]*DomainTotal)
	for _, e := range entries {
		if e.IsOpen() {
			stats.OpenEntries++
		}
		if stats.OldestEntry.IsZero() || e.StartTime.Before(stats.OldestEntry) {
			stats.OldestEntry = e.StartTime
		}
		if e.StartTime.After(stats.NewestEntry) {
			stats.NewestEntry = e.StartTime
		}
		dt, ok := byDomain[e.Domain]
		if !ok {
			dt = &DomainTotal{Domain: e.Domain}
			byDomain[e.Domain] = dt
		}
		dt.Entries++
		dt.Minutes += e.Duration
	}

	for _, dt := range byDomain {
		stats.TopDomains = append(stats.TopDomains, *dt)
	}
	sort.Slice(stats.TopDomains, func(i, j int) bool {
		a, b := stats.TopDomains[i], stats.TopDomains[j]
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.Domain < b.Domain
	})
	if len(stats.TopDomains) > topDomainLimit {
		stats.TopDomains = stats.TopDomains[:topDomainLimit]
	}
	return stats
}

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
