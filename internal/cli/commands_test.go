package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/timesheet/internal/export"
	"github.com/runnerr0/timesheet/internal/summarize"
)

// yesterday returns 09:00 UTC of the previous day and its date.
func yesterday() (time.Time, string) {
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	return day.Add(9 * time.Hour), day.Format("2006-01-02")
}

type stubCompleter struct{ text string }

func (s stubCompleter) Complete(context.Context, summarize.Request) (summarize.Reply, error) {
	return summarize.PlainText(s.text), nil
}

func TestExport_WritesDayCSV(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	start, date := yesterday()
	seedEntries(t, a.store,
		closedEntry("b", "mail.example.com", start.Add(30*time.Minute), 2.5),
		closedEntry("a", "docs.example.com", start, 12.345),
	)

	cmd := &ExportCommand{Date: date, globals: &GlobalFlags{}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Exported 2 rows for "+date)

	path := filepath.Join(cfg.Export.Dir, "browsing-history-"+date+".csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Domain","Title","Duration (minutes)","Start Time","End Time","URL"`, lines[0])
	assert.Contains(t, string(data), `"12.35"`)
}

func TestExport_CompressedAggregates(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	start, date := yesterday()
	seedEntries(t, a.store,
		closedEntry("c", "docs.example.com", start.Add(time.Hour), 5),
		closedEntry("b", "mail.example.com", start.Add(30*time.Minute), 2.5),
		closedEntry("a", "docs.example.com", start, 10),
	)

	cmd := &ExportCommand{Date: date, Format: "aggregates", Compress: true, globals: &GlobalFlags{JSON: true}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)

	var resp struct {
		Status     string `json:"status"`
		DownloadID string `json:"downloadId"`
		Entries    int    `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.Entries)
	assert.True(t, strings.HasSuffix(resp.DownloadID, ".csv.zst"))

	data, err := export.Decompress(resp.DownloadID)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"docs.example.com"`)
	assert.Contains(t, string(data), `"15.00"`)
}

func TestExport_EmptyDayFails(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	_, date := yesterday()

	cmd := &ExportCommand{Date: date, globals: &GlobalFlags{}}
	var err error
	captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.Error(t, err)
	assert.Equal(t, "no activities to export for "+date, err.Error())
}

func TestExport_BadFormat(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	cmd := &ExportCommand{Format: "xml", globals: &GlobalFlags{}}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}

func TestExport_ReloadWithoutHistorySource(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	cmd := &ExportCommand{Reload: true, globals: &GlobalFlags{}}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history source configured")
}

func TestSummarize_NotConfigured(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, date := yesterday()
	seedEntries(t, a.store, closedEntry("a", "docs.example.com", start, 10))

	cmd := &SummarizeCommand{Date: date, globals: &GlobalFlags{}}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarizer not configured")
}

func TestSummarize_PrintsAndCachesTimesheet(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, date := yesterday()
	seedEntries(t, a.store, closedEntry("a", "docs.example.com", start, 10))
	a.svc.Summarizer.Completer = stubCompleter{
		text: `{"dates":[{"date":"01-01-2025","entries":[{"timeRange":"09:00 AM - 09:10 AM","description":"Reviewed docs"}]}]}`,
	}

	cmd := &SummarizeCommand{Date: date, globals: &GlobalFlags{}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Timesheet for "+date)
	assert.Contains(t, output, "Reviewed docs")

	cached := &SummarizeCommand{Cached: true, globals: &GlobalFlags{}}
	output = captureOutput(t, func() {
		err = cached.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Reviewed docs")
}

func TestSummarize_NoCachedSummary(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	cmd := &SummarizeCommand{Cached: true, globals: &GlobalFlags{}}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, "no summary cached", err.Error())
}

func TestStatus_EmptyLog(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Timesheet Status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Entries:       0")
	assert.Contains(t, output, "Retention:     30 days")
	assert.Contains(t, output, "Max entries:   10,000")
	assert.Contains(t, output, "Daemon:        not running")
	assert.Contains(t, output, "Summarizer:    not configured")
	assert.NotContains(t, output, "Top Domains")
}

func TestStatus_WithData(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, _ := yesterday()
	seedEntries(t, a.store,
		closedEntry("c", "mail.example.com", start.Add(time.Hour), 2),
		closedEntry("b", "docs.example.com", start.Add(30*time.Minute), 20),
		closedEntry("a", "docs.example.com", start, 10),
	)

	cmd := &StatusCommand{globals: &GlobalFlags{}, version: "dev"}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Entries:       3")
	assert.Contains(t, output, "Top Domains:")

	docs := strings.Index(output, "docs.example.com")
	mail := strings.Index(output, "mail.example.com")
	require.NotEqual(t, -1, docs)
	require.NotEqual(t, -1, mail)
	assert.Less(t, docs, mail, "domains ordered by minutes")
}

func TestStatus_JSONOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Mode = "rolling24h"
	a := newTestApp(t, cfg)
	start, _ := yesterday()
	seedEntries(t, a.store, closedEntry("a", "docs.example.com", start, 10))

	cmd := &StatusCommand{globals: &GlobalFlags{JSON: true}, version: "1.0.0"}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)

	var out statusJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out), output)
	assert.Equal(t, "1.0.0", out.Version)
	assert.Equal(t, "sqlite", out.Backend)
	assert.Equal(t, int64(1), out.TotalEntries)
	assert.Equal(t, "rolling24h", out.RetentionMode)
	assert.Greater(t, out.StorageBytes, int64(0))
	require.Len(t, out.TopDomains, 1)
	assert.Equal(t, "docs.example.com", out.TopDomains[0].Domain)
	assert.InDelta(t, 10.0, out.TopDomains[0].Minutes, 0.001)
	assert.False(t, out.DaemonRunning)
	assert.False(t, out.SummarizerReady)
	assert.NotEmpty(t, out.OldestEntry)
}

func TestPrune_RemovesEntriesOutsideRetention(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, _ := yesterday()
	seedEntries(t, a.store,
		closedEntry("recent", "docs.example.com", start, 10),
		closedEntry("old1", "old.example.com", start.AddDate(0, 0, -60), 10),
		closedEntry("old2", "old.example.com", start.AddDate(0, 0, -61), 10),
	)

	cmd := &PruneCommand{globals: &GlobalFlags{}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Pruned 2 entries outside the last 30 calendar days")
	assert.Contains(t, output, "1 entries remain.")

	stored, err := a.store.LoadActivities(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "recent", stored[0].ID)
}

func TestPrune_DryRunKeepsEntries(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, _ := yesterday()
	seedEntries(t, a.store,
		closedEntry("recent", "docs.example.com", start, 10),
		closedEntry("old", "old.example.com", start.AddDate(0, 0, -60), 10),
	)

	cmd := &PruneCommand{DryRun: true, globals: &GlobalFlags{JSON: true}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)

	var out pruneJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out), output)
	assert.True(t, out.DryRun)
	assert.Equal(t, 1, out.Removed)
	assert.Equal(t, 1, out.Kept)

	stored, err := a.store.LoadActivities(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPrune_OlderThanOverride(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	now := time.Now()
	seedEntries(t, a.store,
		closedEntry("fresh", "docs.example.com", now.Add(-2*time.Hour), 10),
		closedEntry("week", "old.example.com", now.Add(-8*24*time.Hour), 10),
	)

	cmd := &PruneCommand{OlderThan: "7d", globals: &GlobalFlags{}}
	var err error
	output := captureOutput(t, func() {
		err = cmd.executeWithApp(context.Background(), a)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Pruned 1 entries outside the last 7 days")

	stored, err := a.store.LoadActivities(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "fresh", stored[0].ID)
}

func TestPrune_InvalidOlderThan(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	cmd := &PruneCommand{OlderThan: "abc", globals: &GlobalFlags{}}
	err := cmd.executeWithApp(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestPurge_WithoutAllFlag_Errors(t *testing.T) {
	cmd := &PurgeCommand{globals: &GlobalFlags{}}
	err := cmd.execute(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestPurge_WithAllAndForce_Succeeds(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, _ := yesterday()
	seedEntries(t, a.store, closedEntry("a", "docs.example.com", start, 10))

	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{}}
	cmd.setStore(a.store)

	var err error
	output := captureOutput(t, func() {
		err = cmd.execute(strings.NewReader(""))
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Purged all data")

	stored, err := a.store.LoadActivities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPurge_JSONOutput(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	cmd := &PurgeCommand{All: true, Force: true, globals: &GlobalFlags{JSON: true}}
	cmd.setStore(a.store)

	var err error
	output := captureOutput(t, func() {
		err = cmd.execute(strings.NewReader(""))
	})
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output should be valid JSON: %s", output)
	assert.Equal(t, true, result["purged"])
	assert.Equal(t, "all data deleted", result["message"])
}

func TestPurge_ConfirmationPrompt(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	start, _ := yesterday()
	seedEntries(t, a.store, closedEntry("a", "docs.example.com", start, 10))

	cmd := &PurgeCommand{All: true, globals: &GlobalFlags{}}
	cmd.setStore(a.store)

	var err error
	output := captureOutput(t, func() {
		err = cmd.execute(strings.NewReader("nope\n"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation text did not match")
	assert.Contains(t, output, `Type "PURGE" to confirm`)

	stored, err := a.store.LoadActivities(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 1, "nothing deleted without confirmation")

	output = captureOutput(t, func() {
		err = cmd.execute(strings.NewReader("PURGE\n"))
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Purged all data")
}
