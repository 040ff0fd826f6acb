package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/timesheet/internal/service"
)

// Execute implements the go-flags Commander interface for SummarizeCommand.
func (c *SummarizeCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(context.Background(), a)
}

// executeWithApp runs summarize against a wired app (for testing).
func (c *SummarizeCommand) executeWithApp(ctx context.Context, a *app) error {
	printSummary := func(r service.Response) {
		fmt.Printf("Timesheet for %s\n\n", r.Date)
		fmt.Println(r.Summary)
	}

	if c.Cached {
		return commandResult(c.globals, a.svc.CachedSummary(ctx), printSummary)
	}

	if err := a.load(ctx); err != nil {
		return err
	}
	if c.Reload {
		if resp := a.svc.ReloadDay(ctx, c.Date); !resp.OK() {
			return commandResult(c.globals, resp, nil)
		}
	}

	return commandResult(c.globals, a.svc.Summarize(ctx, c.Date), printSummary)
}
