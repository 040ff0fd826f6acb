package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Record keys shared by the backends.
const (
	KeyActivities = "timesheetActivities"
	KeySummary    = "timesheetSummary"
)

// Summary is the cached result of the last summarization.
type Summary struct {
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats holds aggregate statistics about the stored activity log.
type Stats struct {
	TotalEntries int64
	OpenEntries  int64
	OldestEntry  time.Time
	NewestEntry  time.Time
	SizeBytes    int64
	TopDomains   []DomainTotal
}

// DomainTotal pairs a domain with its entry count and minutes.
type DomainTotal struct {
	Domain  string
	Entries int64
	Minutes float64
}
