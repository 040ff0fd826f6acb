package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/runnerr0/timesheet/internal/export"
	"github.com/runnerr0/timesheet/internal/service"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(context.Background(), a)
}

// executeWithApp runs export against a wired app (for testing).
func (c *ExportCommand) executeWithApp(ctx context.Context, a *app) error {
	if err := a.load(ctx); err != nil {
		return err
	}

	if c.Format != "" {
		format, err := export.ParseFormat(c.Format)
		if err != nil {
			return err
		}
		a.svc.ExportFormat = format
	}
	if c.Dir != "" || c.Compress {
		fd, ok := a.svc.Downloader.(export.FileDownloader)
		if !ok {
			return errors.New("export directory cannot be overridden")
		}
		if c.Dir != "" {
			fd.Dir = c.Dir
		}
		fd.Compress = fd.Compress || c.Compress
		a.svc.Downloader = fd
	}

	if c.Reload {
		if resp := a.svc.ReloadDay(ctx, c.Date); !resp.OK() {
			return commandResult(c.globals, resp, nil)
		}
	}

	resp := a.svc.Export(ctx, c.Date)
	return commandResult(c.globals, resp, func(r service.Response) {
		fmt.Printf("Exported %d rows for %s to %s\n", r.Entries, r.Date, r.DownloadID)
	})
}
