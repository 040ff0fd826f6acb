package activity

import "time"

// Window is an inclusive time interval used for filtering and grouping.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the calendar day containing t in loc:
// [00:00:00.000, 23:59:59.999] local time.
func DayWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return Window{
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-time.Millisecond),
	}
}

// RollingWindow returns the interval (now-d, now]. It is the legacy
// "last 24 hours" mode and is only used when explicitly selected.
func RollingWindow(now time.Time, d time.Duration) Window {
	return Window{
		Start: now.Add(-d).Add(time.Nanosecond),
		End:   now,
	}
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Widen returns the window grown by d on both sides.
func (w Window) Widen(d time.Duration) Window {
	return Window{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

// Date formats the window start as YYYY-MM-DD.
func (w Window) Date() string {
	return w.Start.Format("2006-01-02")
}

// ParseDay parses a YYYY-MM-DD date in loc. An empty string means today.
func ParseDay(s string, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	if s == "" {
		return DayWindow(now, loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return Window{}, err
	}
	return DayWindow(t, loc), nil
}
