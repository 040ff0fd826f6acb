package history

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// SnapshotItem is a history item together with its visit times, as uploaded
// by the extension.
type SnapshotItem struct {
	Item
	Visits []time.Time `json:"visits"`
}

// Snapshot is an in-memory Source built from an uploaded history dump.
type Snapshot struct {
	items  []Item
	visits map[string][]Visit
}

// NewSnapshot indexes uploaded items by URL. Repeated URLs are merged.
func NewSnapshot(items []SnapshotItem) *Snapshot {
	s := &Snapshot{visits: make(map[string][]Visit)}
	seen := make(map[string]int)
	for _, it := range items {
		if idx, ok := seen[it.URL]; ok {
			if it.LastVisitTime.After(s.items[idx].LastVisitTime) {
				s.items[idx].LastVisitTime = it.LastVisitTime
			}
		} else {
			seen[it.URL] = len(s.items)
			s.items = append(s.items, it.Item)
		}
		for _, vt := range it.Visits {
			s.visits[it.URL] = append(s.visits[it.URL], Visit{VisitTime: vt})
		}
	}
	// An item uploaded without visit detail counts as a single visit.
	for _, it := range s.items {
		if len(s.visits[it.URL]) == 0 && !it.LastVisitTime.IsZero() {
			s.visits[it.URL] = []Visit{{VisitTime: it.LastVisitTime}}
		}
	}
	return s
}

// Search returns items whose last visit falls in [StartTime, EndTime],
// most recent first.
func (s *Snapshot) Search(_ context.Context, q Query) ([]Item, error) {
	var out []Item
	for _, it := range s.items {
		if !q.StartTime.IsZero() && it.LastVisitTime.Before(q.StartTime) {
			continue
		}
		if !q.EndTime.IsZero() && it.LastVisitTime.After(q.EndTime) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastVisitTime.After(out[j].LastVisitTime)
	})
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

// Visits returns the recorded visits for url.
func (s *Snapshot) Visits(_ context.Context, url string) ([]Visit, error) {
	v, ok := s.visits[url]
	if !ok {
		return nil, fmt.Errorf("no visits recorded for %s", url)
	}
	out := make([]Visit, len(v))
	copy(out, v)
	return out, nil
}
