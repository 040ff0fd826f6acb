package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/timesheet/internal/activity"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func opts(f Format) Options {
	return Options{Format: f, Location: time.UTC, Now: start.Add(time.Hour)}
}

func TestEntries_RoundsDurationToTwoDecimals(t *testing.T) {
	end := start.Add(12 * time.Minute)
	e := activity.Entry{Domain: "a.com", Title: "A", URL: "https://a.com/", StartTime: start, EndTime: &end, Duration: 12.345}

	out, err := Entries([]activity.Entry{e}, opts(FormatEntries))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Domain","Title","Duration (minutes)","Start Time","End Time","URL"`, lines[0])
	assert.Equal(t, `"a.com","A","12.35","2025-03-10 09:00:00","2025-03-10 09:12:00","https://a.com/"`, lines[1])
}

func TestEntries_QuotesAreDoubled(t *testing.T) {
	end := start.Add(time.Minute)
	e := activity.Entry{Domain: "a.com", Title: `Say "hi", world`, StartTime: start, EndTime: &end, Duration: 1}

	out, err := Entries([]activity.Entry{e}, opts(FormatEntries))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"Say ""hi"", world"`)
}

func TestEntries_OpenEntry(t *testing.T) {
	e := activity.Entry{Domain: "live.com", Title: "L", StartTime: start.Add(30 * time.Minute)}

	out, err := Entries([]activity.Entry{e}, opts(FormatEntries))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"live.com","L","30.00","2025-03-10 09:30:00","",""`)
}

func TestEntries_LiveVariant(t *testing.T) {
	end := start.Add(90 * time.Second)
	e := activity.Entry{Domain: "a.com", Title: "A", StartTime: start, EndTime: &end, Duration: 1.5}

	out, err := Entries([]activity.Entry{e}, opts(FormatLive))
	require.NoError(t, err)
	assert.Equal(t, "\"Date\",\"Time\",\"Duration\",\"Title\",\"Domain\"\n\"2025-03-10\",\"09:00:00\",\"1.50\",\"A\",\"a.com\"\n", string(out))
}

func TestAggregates(t *testing.T) {
	aggs := []activity.DomainAggregate{{
		Domain: "a.com", Title: "A", URL: "https://a.com/", TotalTime: 65,
		StartTime: start, EndTime: start.Add(2 * time.Hour),
	}}
	out, err := Aggregates(aggs, opts(FormatAggregates))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"a.com","A","65.00","2025-03-10 09:00:00","2025-03-10 11:00:00","https://a.com/"`)
}

func TestEmptyExport(t *testing.T) {
	_, err := Entries(nil, opts(FormatEntries))
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = Aggregates(nil, opts(FormatAggregates))
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, "12.35", Minutes(12.345))
	assert.Equal(t, "0.00", Minutes(0))
	assert.Equal(t, "30.00", Minutes(30))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatEntries, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "browsing-history-2025-03-10.csv", Filename(start))
}

func TestFileDownloader_Plain(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	d := FileDownloader{Dir: dir}

	id, err := d.Download([]byte("a,b\n"), "browsing-history-2025-03-10.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "browsing-history-2025-03-10.csv"), id)

	data, err := os.ReadFile(id)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileDownloader_Compressed(t *testing.T) {
	d := FileDownloader{Dir: t.TempDir(), Compress: true}
	payload := []byte(strings.Repeat(`"a.com","A","1.00"`+"\n", 100))

	id, err := d.Download(payload, "../escape.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(d.Dir, "escape.csv.zst"), id)

	got, err := Decompress(id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
