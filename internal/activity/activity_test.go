package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain_StripsWWWAndLowercases(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com/page", "example.com"},
		{"http://Blog.Test.org/post/123", "blog.test.org"},
		{"https://docs.example.com:8443/a?b=c", "docs.example.com"},
		{"https://wwwexample.com", "wwwexample.com"},
	}

	for _, tc := range tests {
		got, err := Domain(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.expected, got, "domain for %s", tc.url)
	}
}

func TestDomain_RejectsHostless(t *testing.T) {
	_, err := Domain("file:///etc/hosts")
	assert.ErrorIs(t, err, ErrNoHost)

	_, err = Domain("://bad")
	assert.Error(t, err)
}

func TestFilter_ExcludesInternalSchemes(t *testing.T) {
	f := DefaultFilter()

	assert.True(t, f.Excluded("chrome://newtab/"))
	assert.True(t, f.Excluded("chrome-extension://abcdef/popup.html"))
	assert.True(t, f.Excluded("CHROME://settings"))
	assert.True(t, f.Excluded("about:blank"))
	assert.True(t, f.Excluded(""))
	assert.False(t, f.Excluded("https://example.com"))
}

func TestFilter_Denylist(t *testing.T) {
	f, err := NewFilter(DefaultExcludedSchemes, []string{"www.chase.com"}, []string{`.*\.xxx$`})
	require.NoError(t, err)

	assert.True(t, f.Excluded("https://chase.com/accounts"))
	assert.True(t, f.Excluded("https://site.xxx/page"))
	assert.False(t, f.Excluded("https://news.ycombinator.com/item?id=1"))
}

func TestNewFilter_InvalidRegex(t *testing.T) {
	_, err := NewFilter(nil, nil, []string{"("})
	assert.Error(t, err)
}

func TestDayWindow_Boundaries(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	day := time.Date(2024, 3, 20, 15, 4, 5, 0, loc)

	w := DayWindow(day, loc)

	assert.Equal(t, time.Date(2024, 3, 20, 0, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, 3, 20, 23, 59, 59, 999_000_000, loc), w.End)
	assert.True(t, w.Contains(time.Date(2024, 3, 20, 23, 59, 59, 999_000_000, loc)))
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(time.Date(2024, 3, 21, 0, 0, 0, 0, loc)))
	assert.False(t, w.Contains(w.Start.Add(-time.Millisecond)))
	assert.Equal(t, "2024-03-20", w.Date())
}

func TestRollingWindow(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	w := RollingWindow(now, 24*time.Hour)

	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.Add(-23*time.Hour)))
	assert.False(t, w.Contains(now.Add(-24*time.Hour)))
}

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	w, err := ParseDay("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-20", w.Date())

	w, err = ParseDay("2024-01-15", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", w.Date())

	_, err = ParseDay("15/01/2024", now, time.UTC)
	assert.Error(t, err)
}

func TestEntry_CloseClampsNegativeDuration(t *testing.T) {
	start := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	e := Entry{StartTime: start}
	require.True(t, e.IsOpen())

	e.Close(start.Add(-5 * time.Minute))

	assert.False(t, e.IsOpen())
	assert.Equal(t, 0.0, e.Duration)
}

func TestEntry_EffectiveDuration(t *testing.T) {
	start := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	open := Entry{StartTime: start}
	assert.InDelta(t, 15.0, open.EffectiveDuration(start.Add(15*time.Minute)), 1e-9)
	assert.Equal(t, start, open.EffectiveEnd())

	closed := open
	closed.Close(start.Add(7 * time.Minute))
	assert.InDelta(t, 7.0, closed.EffectiveDuration(start.Add(time.Hour)), 1e-9)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 12.35, Round2(12.345))
	assert.Equal(t, 1.0, Round2(0.999))
	assert.Equal(t, 0.0, Round2(0.004))
}
