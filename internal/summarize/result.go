package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Timesheet is the structured reply the model is asked for.
type Timesheet struct {
	Dates []TimesheetDate `json:"dates"`
}

// TimesheetDate groups entries of one DD-MM-YYYY date.
type TimesheetDate struct {
	Date    string           `json:"date"`
	Entries []TimesheetEntry `json:"entries"`
}

// TimesheetEntry is one line of the timesheet.
type TimesheetEntry struct {
	TimeRange   string `json:"timeRange,omitempty"`
	TimeStamp   string `json:"timeStamp,omitempty"`
	Description string `json:"description"`
}

// Result is a parsed reply. Text is always the cleaned reply; Timesheet is
// nil when it did not parse, with ParseError saying why.
type Result struct {
	Timesheet  *Timesheet
	Text       string
	ParseError error
}

// Clean unescapes literal \n, \t and \" sequences, drops remaining
// backslashes and normalizes line endings.
func Clean(text string) string {
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`)
	text = r.Replace(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, `\`, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// ParseReply parses a model reply. The raw text is tried first so escaped
// quotes inside JSON strings survive; Clean is applied only when the raw
// text does not parse. Text is always the cleaned reply.
func ParseReply(text string) Result {
	cleaned := Clean(text)
	res := ParseResult(text)
	if res.Timesheet == nil {
		res = ParseResult(cleaned)
	}
	res.Text = cleaned
	return res
}

// ParseResult parses cleaned reply text. JSON wrapped in prose or a code
// fence is extracted first.
func ParseResult(text string) Result {
	res := Result{Text: text}

	candidate := extractJSON(text)
	if candidate == "" {
		res.ParseError = errors.New("reply contains no JSON object")
		return res
	}

	var ts Timesheet
	if err := json.Unmarshal([]byte(candidate), &ts); err != nil {
		res.ParseError = fmt.Errorf("parse timesheet JSON: %w", err)
		return res
	}
	if ts.Dates == nil {
		res.ParseError = errors.New(`timesheet JSON has no "dates"`)
		return res
	}
	res.Timesheet = &ts
	return res
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// Render formats a result for display. An unparsed reply is shown as an
// error section followed by the raw text.
func (r Result) Render() string {
	if r.Timesheet == nil {
		var sb strings.Builder
		sb.WriteString("Could not read the timesheet as JSON")
		if r.ParseError != nil {
			fmt.Fprintf(&sb, " (%v)", r.ParseError)
		}
		sb.WriteString(". Raw reply:\n\n")
		sb.WriteString(r.Text)
		return sb.String()
	}

	var sb strings.Builder
	for i, d := range r.Timesheet.Dates {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(d.Date)
		sb.WriteString("\n")
		for _, e := range d.Entries {
			when := e.TimeRange
			if when == "" {
				when = e.TimeStamp
			}
			fmt.Fprintf(&sb, "  %s  %s\n", when, e.Description)
		}
	}
	return sb.String()
}
