package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/config"
	"github.com/runnerr0/timesheet/internal/logging"
	"github.com/runnerr0/timesheet/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testConfig returns defaults rooted in temp directories with no
// summarizer and an unreachable daemon port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Export.Dir = t.TempDir()
	cfg.Summarizer.Provider = "none"
	cfg.Aggregation.Timezone = "UTC"
	cfg.Daemon.Port = 1
	return cfg
}

// newTestApp wires an app over a fresh store for cfg.
func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	path, err := cfg.StorageLocation()
	require.NoError(t, err)
	store, err := storage.Open(cfg.Storage.Backend, path)
	require.NoError(t, err)

	a, err := newApp(cfg, store, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// seedEntries writes entries straight to the store, most recent first.
func seedEntries(t *testing.T, store storage.Store, entries ...activity.Entry) {
	t.Helper()
	require.NoError(t, store.SaveActivities(context.Background(), entries))
}

func closedEntry(id, domain string, start time.Time, minutes float64) activity.Entry {
	e := activity.Entry{
		ID:        id,
		Domain:    domain,
		Title:     domain,
		URL:       "https://" + domain + "/",
		StartTime: start,
		Source:    activity.SourceLive,
	}
	e.Close(start.Add(time.Duration(minutes * float64(time.Minute))))
	return e
}
