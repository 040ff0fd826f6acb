package activity

import (
	"math"
	"time"
)

// Entry sources.
const (
	SourceLive    = "live"
	SourceHistory = "history"
)

// Entry is one observed interval of attention on a single page.
type Entry struct {
	ID         string     `json:"id"`
	Domain     string     `json:"domain"`
	Title      string     `json:"title"`
	URL        string     `json:"url,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	Duration   float64    `json:"duration"` // minutes
	Source     string     `json:"source,omitempty"`
	VisitCount int        `json:"visitCount,omitempty"`
}

// IsOpen reports whether the entry is still the live, unclosed entry.
func (e Entry) IsOpen() bool {
	return e.EndTime == nil
}

// Close sets the end time and recomputes the duration, clamping clock skew to zero.
func (e *Entry) Close(at time.Time) {
	end := at
	e.EndTime = &end
	e.Duration = MinutesBetween(e.StartTime, end)
}

// EffectiveDuration returns the stored duration for closed entries and the
// elapsed minutes up to now for the open one.
func (e Entry) EffectiveDuration(now time.Time) float64 {
	if e.IsOpen() {
		return MinutesBetween(e.StartTime, now)
	}
	return e.Duration
}

// EffectiveEnd is the end time, or the start time when the entry has none.
func (e Entry) EffectiveEnd() time.Time {
	if e.EndTime == nil {
		return e.StartTime
	}
	return *e.EndTime
}

// DomainAggregate is the per-day rollup of entries sharing a grouping key.
type DomainAggregate struct {
	Domain            string    `json:"domain"`
	Title             string    `json:"title"`
	URL               string    `json:"url"`
	TotalTime         float64   `json:"totalTime"` // minutes, rounded to 2 decimals
	Visits            int       `json:"visits"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	FormattedDuration string    `json:"formattedDuration"`
	Activities        []Entry   `json:"activities"`
}

// MinutesBetween returns max(0, end-start) in fractional minutes.
func MinutesBetween(start, end time.Time) float64 {
	d := end.Sub(start).Minutes()
	if d < 0 {
		return 0
	}
	return d
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
