// Package aggregate rolls activity entries up into per-day domain totals.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
)

// Key selects how entries are grouped.
type Key string

const (
	// KeyDomain groups by domain only.
	KeyDomain Key = "domain"
	// KeyDomainTitle groups by domain and page title.
	KeyDomainTitle Key = "domain_title"
)

// Order selects the output ordering.
type Order string

const (
	// OrderChronological sorts by earliest start, then longest total, then domain.
	OrderChronological Order = "chronological"
	// OrderByTotalTime sorts by longest total, then earliest start, then domain.
	OrderByTotalTime Order = "total_time"
)

// ParseKey validates a configured grouping key. Empty selects KeyDomain.
func ParseKey(s string) (Key, error) {
	switch Key(s) {
	case "", KeyDomain:
		return KeyDomain, nil
	case KeyDomainTitle:
		return KeyDomainTitle, nil
	}
	return "", fmt.Errorf("unknown aggregation key %q", s)
}

// ParseOrder validates a configured ordering. Empty selects OrderChronological.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderChronological:
		return OrderChronological, nil
	case OrderByTotalTime:
		return OrderByTotalTime, nil
	}
	return "", fmt.Errorf("unknown aggregation order %q", s)
}

// Options controls one aggregation run.
type Options struct {
	Window activity.Window
	Key    Key
	Order  Order
	// Now values the open entry. Zero uses time.Now.
	Now time.Time
}

// Aggregate groups the entries that started inside opts.Window. Open entries
// count with their elapsed duration at opts.Now. The input is not modified.
func Aggregate(entries []activity.Entry, opts Options) []activity.DomainAggregate {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	groups := make(map[string]*activity.DomainAggregate)
	var order []string
	for _, e := range entries {
		if !opts.Window.Contains(e.StartTime) {
			continue
		}
		k := groupKey(e, opts.Key)
		g, ok := groups[k]
		if !ok {
			g = &activity.DomainAggregate{
				Domain:    e.Domain,
				Title:     e.Title,
				URL:       e.URL,
				StartTime: e.StartTime,
				EndTime:   e.EffectiveEnd(),
			}
			groups[k] = g
			order = append(order, k)
		}

		g.Visits++
		g.TotalTime += e.EffectiveDuration(now)
		if e.StartTime.Before(g.StartTime) {
			g.Title = e.Title
			g.URL = e.URL
			g.StartTime = e.StartTime
		}
		if end := e.EffectiveEnd(); end.After(g.EndTime) {
			g.EndTime = end
		}
		g.Activities = append(g.Activities, e)
	}

	out := make([]activity.DomainAggregate, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.TotalTime = activity.Round2(g.TotalTime)
		g.FormattedDuration = FormatDuration(g.TotalTime)
		sort.SliceStable(g.Activities, func(i, j int) bool {
			return g.Activities[i].StartTime.Before(g.Activities[j].StartTime)
		})
		out = append(out, *g)
	}

	sortAggregates(out, opts.Order)
	return out
}

func groupKey(e activity.Entry, key Key) string {
	if key == KeyDomainTitle {
		return e.Domain + "\x00" + e.Title
	}
	return e.Domain
}

func sortAggregates(aggs []activity.DomainAggregate, order Order) {
	sort.SliceStable(aggs, func(i, j int) bool {
		a, b := aggs[i], aggs[j]
		if order == OrderByTotalTime {
			if a.TotalTime != b.TotalTime {
				return a.TotalTime > b.TotalTime
			}
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
		} else {
			if !a.StartTime.Equal(b.StartTime) {
				return a.StartTime.Before(b.StartTime)
			}
			if a.TotalTime != b.TotalTime {
				return a.TotalTime > b.TotalTime
			}
		}
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		return a.Title < b.Title
	})
}

// TotalMinutes sums the totals of aggs.
func TotalMinutes(aggs []activity.DomainAggregate) float64 {
	var total float64
	for _, a := range aggs {
		total += a.TotalTime
	}
	return activity.Round2(total)
}

// FormatDuration renders minutes as "1h 5m" or "45m".
func FormatDuration(minutes float64) string {
	if minutes < 0 {
		minutes = 0
	}
	hours := int(math.Floor(minutes / 60))
	rem := int(math.Round(math.Mod(minutes, 60)))
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, rem)
	}
	return fmt.Sprintf("%dm", rem)
}
