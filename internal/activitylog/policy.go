package activitylog

import (
	"fmt"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
)

// DefaultMaxEntries bounds the stored log.
const DefaultMaxEntries = 10000

// Mode selects how the retention horizon is computed on reload and prune.
type Mode string

const (
	// ModeCalendar keeps the last Days local calendar days, today included.
	ModeCalendar Mode = "calendar"
	// ModeRolling24h keeps entries that started within the last 24 hours.
	ModeRolling24h Mode = "rolling24h"
)

// ParseMode validates a configured mode name. Empty selects ModeCalendar.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeCalendar:
		return ModeCalendar, nil
	case ModeRolling24h:
		return ModeRolling24h, nil
	default:
		return "", fmt.Errorf("unknown retention mode %q (want %q or %q)", s, ModeCalendar, ModeRolling24h)
	}
}

// Policy bounds the activity log.
type Policy struct {
	MaxEntries int
	Mode       Mode
	// Days is the calendar horizon. Zero or less keeps every day.
	Days int
	// MaxAge, when set, replaces Mode and Days: entries that started more
	// than MaxAge ago are dropped.
	MaxAge time.Duration
}

// DefaultPolicy returns the default retention policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxEntries: DefaultMaxEntries,
		Mode:       ModeCalendar,
		Days:       30,
	}
}

// Horizon returns the earliest start time kept at now. A zero time means
// nothing is too old.
func (p Policy) Horizon(now time.Time, loc *time.Location) time.Time {
	if p.MaxAge > 0 {
		return now.Add(-p.MaxAge)
	}
	switch p.Mode {
	case ModeRolling24h:
		return activity.RollingWindow(now, 24*time.Hour).Start
	default:
		if p.Days <= 0 {
			return time.Time{}
		}
		return activity.DayWindow(now, loc).Start.AddDate(0, 0, -(p.Days - 1))
	}
}

// Apply drops entries older than the horizon and truncates the tail beyond
// MaxEntries. The open entry is never dropped by age. entries must be most
// recent first; the result is a new slice.
func (p Policy) Apply(entries []activity.Entry, now time.Time, loc *time.Location) []activity.Entry {
	horizon := p.Horizon(now, loc)
	kept := make([]activity.Entry, 0, len(entries))
	for _, e := range entries {
		if !horizon.IsZero() && e.StartTime.Before(horizon) && !e.IsOpen() {
			continue
		}
		kept = append(kept, e)
	}
	return p.truncate(kept)
}

func (p Policy) truncate(entries []activity.Entry) []activity.Entry {
	if p.MaxEntries > 0 && len(entries) > p.MaxEntries {
		return entries[:p.MaxEntries]
	}
	return entries
}
