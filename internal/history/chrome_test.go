package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/timesheet/internal/activity"
)

// writeChromeHistory creates a minimal Chromium History database.
func writeChromeHistory(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url LONGVARCHAR, title LONGVARCHAR,
			visit_count INTEGER DEFAULT 0, typed_count INTEGER DEFAULT 0,
			last_visit_time INTEGER NOT NULL, hidden INTEGER DEFAULT 0)`,
		`CREATE TABLE visits (id INTEGER PRIMARY KEY, url INTEGER NOT NULL, visit_time INTEGER NOT NULL)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}

	base := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	_, err = db.Exec(`INSERT INTO urls (id, url, title, visit_count, last_visit_time) VALUES (1, ?, ?, 2, ?)`,
		"https://docs.example.com/a", "Docs", toWebkit(base.Add(20*time.Minute)))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO urls (id, url, title, visit_count, last_visit_time, hidden) VALUES (2, ?, ?, 1, ?, 1)`,
		"https://hidden.example.com", "Hidden", toWebkit(base))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO visits (url, visit_time) VALUES (1, ?), (1, ?)`,
		toWebkit(base.Add(20*time.Minute)), toWebkit(base))
	require.NoError(t, err)
}

func TestChromeDB_SearchAndVisits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	writeChromeHistory(t, path)

	c, err := OpenChrome(path)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	items, err := c.Search(ctx, Query{StartTime: base.Add(-time.Hour), EndTime: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, items, 1, "hidden urls are skipped")
	assert.Equal(t, "Docs", items[0].Title)
	assert.Equal(t, 2, items[0].VisitCount)
	assert.True(t, items[0].LastVisitTime.Equal(base.Add(20*time.Minute)))

	visits, err := c.Visits(ctx, "https://docs.example.com/a")
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.True(t, visits[0].VisitTime.Equal(base))
	assert.True(t, visits[1].VisitTime.Equal(base.Add(20*time.Minute)))
}

func TestChromeDB_RefreshSeesNewVisits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	writeChromeHistory(t, path)

	c, err := OpenChrome(path)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	const u = "https://docs.example.com/a"
	visits, err := c.Visits(ctx, u)
	require.NoError(t, err)
	require.Len(t, visits, 2)

	browser, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer browser.Close()
	later := time.Date(2024, 3, 20, 11, 0, 0, 0, time.UTC)
	_, err = browser.Exec(`INSERT INTO visits (url, visit_time) VALUES (1, ?)`, toWebkit(later))
	require.NoError(t, err)
	_, err = browser.Exec(`UPDATE urls SET last_visit_time = ?, visit_count = 3 WHERE id = 1`, toWebkit(later))
	require.NoError(t, err)

	require.NoError(t, c.Refresh(ctx))
	visits, err = c.Visits(ctx, u)
	require.NoError(t, err)
	require.Len(t, visits, 3)
	assert.True(t, visits[2].VisitTime.Equal(later))
}

func TestNormalize_RefreshesChromeHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History")
	writeChromeHistory(t, path)

	c, err := OpenChrome(path)
	require.NoError(t, err)
	defer c.Close()

	browser, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer browser.Close()
	later := time.Date(2024, 3, 20, 11, 0, 0, 0, time.UTC)
	_, err = browser.Exec(`INSERT INTO visits (url, visit_time) VALUES (1, ?)`, toWebkit(later))
	require.NoError(t, err)
	_, err = browser.Exec(`UPDATE urls SET last_visit_time = ? WHERE id = 1`, toWebkit(later))
	require.NoError(t, err)

	n := newTestNormalizer(c, later.Add(10*time.Minute))
	entries, err := n.Normalize(context.Background(), activity.DayWindow(later, time.UTC))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].StartTime.Equal(later))
}

func TestOpenChrome_MissingFile(t *testing.T) {
	_, err := OpenChrome(filepath.Join(t.TempDir(), "History"))
	require.Error(t, err)
}

func TestWebkitEpochRoundtrip(t *testing.T) {
	ts := time.Date(2024, 3, 20, 9, 0, 0, 123000, time.UTC)
	assert.True(t, fromWebkit(toWebkit(ts)).Equal(ts))
	assert.Equal(t, int64(0), toWebkit(time.Time{}))
}
