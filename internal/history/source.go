package history

import (
	"context"
	"time"
)

// Query mirrors the browser history search capability.
type Query struct {
	Text       string
	StartTime  time.Time
	EndTime    time.Time
	MaxResults int
}

// Item is one history record: a URL with its most recent visit.
type Item struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	LastVisitTime time.Time `json:"lastVisitTime"`
	VisitCount    int       `json:"visitCount"`
}

// Visit is a single visit to a URL.
type Visit struct {
	VisitTime time.Time `json:"visitTime"`
}

// Source is the history capability of the host browser.
type Source interface {
	Search(ctx context.Context, q Query) ([]Item, error)
	Visits(ctx context.Context, url string) ([]Visit, error)
}

// Refresher is implemented by sources that read a copy of live history and
// can take a newer one.
type Refresher interface {
	Refresh(ctx context.Context) error
}
