package aggregate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/history"
)

var (
	loc = time.UTC
	day = activity.DayWindow(time.Date(2025, 3, 10, 12, 0, 0, 0, loc), loc)
)

func clock(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, loc)
}

func closed(domain, title string, start time.Time, minutes float64) activity.Entry {
	e := activity.Entry{Domain: domain, Title: title, URL: "https://" + domain + "/" + title, StartTime: start}
	e.Close(start.Add(time.Duration(minutes * float64(time.Minute))))
	return e
}

func opts() Options {
	return Options{Window: day, Key: KeyDomain, Order: OrderChronological, Now: clock(18, 0)}
}

func TestAggregate_GroupsByDomain(t *testing.T) {
	entries := []activity.Entry{
		closed("b.com", "B2", clock(11, 0), 15),
		closed("a.com", "A2", clock(10, 30), 10),
		closed("b.com", "B1", clock(10, 0), 5),
		closed("a.com", "A1", clock(9, 0), 20),
	}

	aggs := Aggregate(entries, opts())
	require.Len(t, aggs, 2)

	a := aggs[0]
	assert.Equal(t, "a.com", a.Domain)
	assert.Equal(t, 2, a.Visits)
	assert.Equal(t, 30.0, a.TotalTime)
	assert.Equal(t, "A1", a.Title, "earliest entry is representative")
	assert.Equal(t, clock(9, 0), a.StartTime)
	assert.Equal(t, clock(10, 40), a.EndTime)
	assert.Equal(t, "30m", a.FormattedDuration)
	require.Len(t, a.Activities, 2)
	assert.Equal(t, "A1", a.Activities[0].Title)
	assert.Equal(t, "A2", a.Activities[1].Title)

	assert.Equal(t, "b.com", aggs[1].Domain)
	assert.Equal(t, 20.0, aggs[1].TotalTime)
}

func TestAggregate_DomainTitleKey(t *testing.T) {
	entries := []activity.Entry{
		closed("a.com", "Inbox", clock(9, 0), 5),
		closed("a.com", "Compose", clock(9, 5), 5),
		closed("a.com", "Inbox", clock(9, 10), 5),
	}
	o := opts()
	o.Key = KeyDomainTitle

	aggs := Aggregate(entries, o)
	require.Len(t, aggs, 2)
	assert.Equal(t, "Inbox", aggs[0].Title)
	assert.Equal(t, 2, aggs[0].Visits)
	assert.Equal(t, "Compose", aggs[1].Title)
}

func TestAggregate_TotalsMatchEntriesInWindow(t *testing.T) {
	entries := []activity.Entry{
		closed("a.com", "x", clock(0, 0), 1.25),
		closed("b.com", "x", clock(3, 0), 2.5),
		closed("a.com", "x", clock(8, 0), 3.75),
		closed("c.com", "x", clock(23, 0), 4.5),
		closed("c.com", "x", day.Start.Add(-time.Millisecond), 100),
		closed("c.com", "x", day.End.Add(time.Millisecond), 100),
	}

	var want float64
	for _, e := range entries {
		if day.Contains(e.StartTime) {
			want += e.Duration
		}
	}

	var got float64
	for _, a := range Aggregate(entries, opts()) {
		got += a.TotalTime
	}
	assert.InDelta(t, want, got, 0.01)
	assert.InDelta(t, 12.0, got, 1e-9)
}

func TestAggregate_DayBoundary(t *testing.T) {
	last := closed("late.com", "x", day.End, 1)
	next := closed("early.com", "x", day.End.Add(time.Millisecond), 1)
	require.Equal(t, 23, last.StartTime.Hour())
	require.Equal(t, 999*time.Millisecond, time.Duration(last.StartTime.Nanosecond()))

	aggs := Aggregate([]activity.Entry{next, last}, opts())
	require.Len(t, aggs, 1)
	assert.Equal(t, "late.com", aggs[0].Domain)
}

func TestAggregate_Idempotent(t *testing.T) {
	open := activity.Entry{Domain: "live.com", Title: "L", StartTime: clock(17, 30)}
	entries := []activity.Entry{
		open,
		closed("a.com", "A", clock(9, 0), 20),
		closed("b.com", "B", clock(9, 0), 25),
	}

	first := Aggregate(entries, opts())
	second := Aggregate(entries, opts())
	assert.Equal(t, first, second)
	assert.True(t, entries[0].IsOpen(), "input untouched")
	assert.Equal(t, 0.0, entries[0].Duration)
}

func TestAggregate_ChronologicalTieBreaks(t *testing.T) {
	entries := []activity.Entry{
		closed("short.com", "S", clock(9, 0), 5),
		closed("long.com", "L", clock(9, 0), 50),
		closed("first.com", "F", clock(8, 0), 1),
		closed("beta.com", "x", clock(10, 0), 5),
		closed("alpha.com", "x", clock(10, 0), 5),
	}

	var domains []string
	for _, a := range Aggregate(entries, opts()) {
		domains = append(domains, a.Domain)
	}
	assert.Equal(t, []string{"first.com", "long.com", "short.com", "alpha.com", "beta.com"}, domains)
}

func TestAggregate_ByTotalTime(t *testing.T) {
	entries := []activity.Entry{
		closed("a.com", "A", clock(8, 0), 5),
		closed("b.com", "B", clock(9, 0), 50),
		closed("c.com", "C", clock(10, 0), 5),
	}
	o := opts()
	o.Order = OrderByTotalTime

	var domains []string
	for _, a := range Aggregate(entries, o) {
		domains = append(domains, a.Domain)
	}
	assert.Equal(t, []string{"b.com", "a.com", "c.com"}, domains)
}

func TestAggregate_OpenEntryUsesElapsedTime(t *testing.T) {
	open := activity.Entry{Domain: "live.com", StartTime: clock(17, 45)}
	aggs := Aggregate([]activity.Entry{open}, opts())
	require.Len(t, aggs, 1)
	assert.Equal(t, 15.0, aggs[0].TotalTime)
	assert.Equal(t, clock(17, 45), aggs[0].EndTime, "open entry ends at its start")
}

func TestAggregate_Rounding(t *testing.T) {
	aggs := Aggregate([]activity.Entry{closed("a.com", "A", clock(9, 0), 12.345)}, opts())
	require.Len(t, aggs, 1)
	assert.Equal(t, 12.35, aggs[0].TotalTime)
}

func TestAggregate_DocsScenarioFromHistory(t *testing.T) {
	src := history.NewSnapshot([]history.SnapshotItem{{
		Item:   history.Item{URL: "https://docs.example.com/", Title: "Docs", LastVisitTime: clock(9, 55)},
		Visits: []time.Time{clock(9, 0), clock(9, 20), clock(9, 55)},
	}})
	now := clock(10, 10)
	n := history.NewNormalizer(src, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Now = func() time.Time { return now }

	entries, err := n.Normalize(context.Background(), day)
	require.NoError(t, err)

	o := opts()
	o.Now = now
	aggs := Aggregate(entries, o)
	require.Len(t, aggs, 1)
	assert.Equal(t, 3, aggs[0].Visits)
	// 20 + 30 (capped) + 15 elapsed for the final visit.
	assert.Equal(t, 65.0, aggs[0].TotalTime)
	assert.Equal(t, "1h 5m", aggs[0].FormattedDuration)
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		minutes float64
		want    string
	}{
		{0, "0m"},
		{0.4, "0m"},
		{45, "45m"},
		{59.4, "59m"},
		{60, "1h 0m"},
		{65, "1h 5m"},
		{125.5, "2h 6m"},
		{-3, "0m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDuration(tc.minutes), "%v", tc.minutes)
	}
}

func TestTotalMinutes(t *testing.T) {
	aggs := []activity.DomainAggregate{{TotalTime: 1.25}, {TotalTime: 2.5}}
	assert.InDelta(t, 3.75, TotalMinutes(aggs), 1e-9)
}

func TestParseKeyAndOrder(t *testing.T) {
	k, err := ParseKey("")
	require.NoError(t, err)
	assert.Equal(t, KeyDomain, k)
	_, err = ParseKey("url")
	assert.Error(t, err)

	o, err := ParseOrder("total_time")
	require.NoError(t, err)
	assert.Equal(t, OrderByTotalTime, o)
	_, err = ParseOrder("random")
	assert.Error(t, err)
}
