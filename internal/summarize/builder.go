// Package summarize turns aggregated activity into a timesheet by way of an
// external text generation service.
package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/aggregate"
)

// ErrNoActivities is returned when there is nothing to summarize.
var ErrNoActivities = errors.New("no activities to summarize")

// Time and date layouts used in prompts.
const (
	ClockLayout = "03:04 PM"
	DateLayout  = "02-01-2006"
)

// Mode selects how each activity's time is rendered.
type Mode string

const (
	// ModeTimeRange renders "09:00 AM - 09:20 AM".
	ModeTimeRange Mode = "range"
	// ModeTimeStamp renders the start time only.
	ModeTimeStamp Mode = "stamp"
)

const systemPrompt = `You are a precise time-tracking analyzer that turns web browsing activity into professional timesheet entries.

Respond with valid JSON only. No markdown, no explanation. Schema:
{
  "dates": [
    {
      "date": "DD-MM-YYYY",
      "entries": [
        {"timeRange": "9:00 AM - 10:30 AM", "description": "Concise one-line activity description"}
      ]
    }
  ]
}

Rules:
- Group entries by date in the dates array. Dates are DD-MM-YYYY.
- Keep the exact times given in the input. Use 12-hour time with AM/PM.
- Merge related consecutive activities into one entry.
- Descriptions start with an action verb, fit on one line and name specifics such as ticket numbers, PR numbers or video titles when present.`

// promptActivity is one activity as shown to the model.
type promptActivity struct {
	Domain    string `json:"domain"`
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Date      string `json:"date"`
	TimeRange string `json:"timeRange,omitempty"`
	TimeStamp string `json:"timeStamp,omitempty"`
	Duration  string `json:"duration"`
	Visits    int    `json:"visits,omitempty"`
}

// Builder shapes activity into a prompt.
type Builder struct {
	Mode     Mode
	Location *time.Location
	// Now ends open entries. Defaults to time.Now.
	Now func() time.Time
}

// Build renders aggregates and their total into a prompt.
func (b Builder) Build(aggs []activity.DomainAggregate, totalMinutes float64) (string, error) {
	if len(aggs) == 0 {
		return "", ErrNoActivities
	}
	items := make([]promptActivity, 0, len(aggs))
	for _, a := range aggs {
		p := b.render(a.Domain, a.Title, a.URL, a.StartTime, a.EndTime, a.FormattedDuration)
		p.Visits = a.Visits
		items = append(items, p)
	}
	return b.prompt(items, totalMinutes)
}

// BuildFromEntries renders raw entries, one line of input per entry.
func (b Builder) BuildFromEntries(entries []activity.Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoActivities
	}
	now := b.now()
	items := make([]promptActivity, 0, len(entries))
	var total float64
	for _, e := range entries {
		end := now
		if e.EndTime != nil {
			end = *e.EndTime
		}
		d := e.EffectiveDuration(now)
		total += d
		items = append(items, b.render(e.Domain, e.Title, e.URL, e.StartTime, end, aggregate.FormatDuration(d)))
	}
	return b.prompt(items, activity.Round2(total))
}

// SystemPrompt returns the instructions sent alongside every prompt.
func (b Builder) SystemPrompt() string {
	return systemPrompt
}

func (b Builder) render(domain, title, url string, start, end time.Time, duration string) promptActivity {
	loc := b.Location
	if loc == nil {
		loc = time.Local
	}
	start, end = start.In(loc), end.In(loc)

	if domain == "" {
		domain = "unknown"
	}
	if title == "" {
		title = "Untitled"
	}
	p := promptActivity{
		Domain:   domain,
		Title:    title,
		URL:      url,
		Date:     start.Format(DateLayout),
		Duration: duration,
	}
	if b.Mode == ModeTimeStamp {
		p.TimeStamp = start.Format(ClockLayout)
	} else {
		p.TimeRange = start.Format(ClockLayout) + " - " + end.Format(ClockLayout)
	}
	return p
}

func (b Builder) prompt(items []promptActivity, totalMinutes float64) (string, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode activities: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("## Browsing Activity\n")
	fmt.Fprintf(&sb, "- Activities: %d\n", len(items))
	fmt.Fprintf(&sb, "- Total time: %s (%.2f minutes)\n\n", aggregate.FormatDuration(totalMinutes), totalMinutes)
	sb.WriteString("<input>\n")
	sb.Write(data)
	sb.WriteString("\n</input>\n\n")
	sb.WriteString("Produce the timesheet JSON for these activities. Do not include any text outside the JSON object.")
	return sb.String(), nil
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
