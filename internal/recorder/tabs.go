package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTab is returned when a tab id cannot be resolved.
var ErrUnknownTab = errors.New("unknown tab")

// Tab is the url and title the host last reported for a tab.
type Tab struct {
	ID    int
	URL   string
	Title string
}

// TabResolver resolves a tab id to its current url and title.
type TabResolver interface {
	Tab(ctx context.Context, tabID int) (Tab, error)
}

// TabCache is a TabResolver fed by host events.
type TabCache struct {
	mu   sync.RWMutex
	tabs map[int]Tab
}

// NewTabCache returns an empty cache.
func NewTabCache() *TabCache {
	return &TabCache{tabs: make(map[int]Tab)}
}

// Set records the latest url and title for a tab. Empty fields keep the
// previously known value.
func (c *TabCache) Set(t Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.tabs[t.ID]
	if t.URL == "" {
		t.URL = prev.URL
	}
	if t.Title == "" {
		t.Title = prev.Title
	}
	c.tabs[t.ID] = t
}

// Remove forgets a closed tab.
func (c *TabCache) Remove(tabID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tabs, tabID)
}

// Tab implements TabResolver.
func (c *TabCache) Tab(_ context.Context, tabID int) (Tab, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tabs[tabID]
	if !ok {
		return Tab{}, fmt.Errorf("tab %d: %w", tabID, ErrUnknownTab)
	}
	return t, nil
}
