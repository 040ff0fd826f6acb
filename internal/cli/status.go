package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/timesheet/internal/activitylog"
	"github.com/runnerr0/timesheet/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version         string            `json:"version"`
	Backend         string            `json:"backend"`
	StoragePath     string            `json:"storage_path"`
	StorageBytes    int64             `json:"storage_bytes"`
	TotalEntries    int64             `json:"total_entries"`
	OpenEntries     int64             `json:"open_entries"`
	OldestEntry     string            `json:"oldest_entry,omitempty"`
	NewestEntry     string            `json:"newest_entry,omitempty"`
	RetentionMode   string            `json:"retention_mode"`
	RetentionDays   int               `json:"retention_days"`
	MaxEntries      int               `json:"max_entries"`
	TopDomains      []domainTotalJSON `json:"top_domains"`
	DaemonAddr      string            `json:"daemon_addr"`
	DaemonRunning   bool              `json:"daemon_running"`
	Summarizer      string            `json:"summarizer"`
	SummarizerReady bool              `json:"summarizer_ready"`
}

type domainTotalJSON struct {
	Domain  string  `json:"domain"`
	Entries int64   `json:"entries"`
	Minutes float64 `json:"minutes"`
}

// statusInfo is what both printers render.
type statusInfo struct {
	stats           *storage.Stats
	storagePath     string
	daemonRunning   bool
	summarizerReady bool
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(context.Background(), a)
}

// executeWithApp runs status against a wired app (for testing).
func (c *StatusCommand) executeWithApp(ctx context.Context, a *app) error {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	path, err := a.cfg.StorageLocation()
	if err != nil {
		return err
	}

	info := statusInfo{
		stats:           stats,
		storagePath:     path,
		daemonRunning:   checkDaemon(a.cfg.Addr()),
		summarizerReady: a.svc.Summarizer != nil && a.svc.Summarizer.Completer != nil,
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(a, info)
	}
	return c.printStatusHuman(a, info)
}

func (c *StatusCommand) printStatusHuman(a *app, info statusInfo) error {
	stats := info.stats
	fmt.Println("Timesheet Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Storage:       %s (%s, %s)\n", info.storagePath, a.cfg.Storage.Backend, humanize.Bytes(uint64(max(stats.SizeBytes, 0))))
	fmt.Printf("Entries:       %s\n", humanize.Comma(stats.TotalEntries))
	if stats.OpenEntries > 0 {
		fmt.Println("Recording:     yes")
	}

	if stats.TotalEntries > 0 {
		fmt.Printf("Oldest:        %s (%s)\n", stats.OldestEntry.In(a.loc).Format("2006-01-02"), humanize.Time(stats.OldestEntry))
		fmt.Printf("Newest:        %s (%s)\n", stats.NewestEntry.In(a.loc).Format("2006-01-02"), humanize.Time(stats.NewestEntry))
	}

	if a.policy.Mode == activitylog.ModeRolling24h {
		fmt.Println("Retention:     rolling 24 hours")
	} else {
		fmt.Printf("Retention:     %d days\n", a.policy.Days)
	}
	fmt.Printf("Max entries:   %s\n", humanize.Comma(int64(a.policy.MaxEntries)))

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-24s %8s  %s min\n", d.Domain, humanize.Comma(d.Entries), humanize.FormatFloat("#,###.##", d.Minutes))
		}
	}

	fmt.Println()
	if info.daemonRunning {
		fmt.Printf("Daemon:        running (%s)\n", a.cfg.Addr())
	} else {
		fmt.Println("Daemon:        not running")
	}
	if info.summarizerReady {
		fmt.Printf("Summarizer:    %s (%s)\n", a.cfg.Summarizer.Provider, a.cfg.Summarizer.Model)
	} else {
		fmt.Println("Summarizer:    not configured")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(a *app, info statusInfo) error {
	stats := info.stats
	out := statusJSON{
		Version:         c.version,
		Backend:         a.cfg.Storage.Backend,
		StoragePath:     info.storagePath,
		StorageBytes:    stats.SizeBytes,
		TotalEntries:    stats.TotalEntries,
		OpenEntries:     stats.OpenEntries,
		RetentionMode:   string(a.policy.Mode),
		RetentionDays:   a.policy.Days,
		MaxEntries:      a.policy.MaxEntries,
		TopDomains:      make([]domainTotalJSON, len(stats.TopDomains)),
		DaemonAddr:      a.cfg.Addr(),
		DaemonRunning:   info.daemonRunning,
		Summarizer:      a.cfg.Summarizer.Provider,
		SummarizerReady: info.summarizerReady,
	}

	if stats.TotalEntries > 0 {
		out.OldestEntry = stats.OldestEntry.UTC().Format(time.RFC3339)
		out.NewestEntry = stats.NewestEntry.UTC().Format(time.RFC3339)
	}

	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainTotalJSON{Domain: d.Domain, Entries: d.Entries, Minutes: d.Minutes}
	}

	return printJSON(out)
}
