package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/timesheet/internal/activitylog"
)

// pruneJSON is the JSON output structure for the prune command.
type pruneJSON struct {
	DryRun  bool   `json:"dry_run"`
	Removed int    `json:"removed"`
	Kept    int    `json:"kept"`
	Horizon string `json:"horizon,omitempty"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	return c.executeWithApp(context.Background(), a)
}

// executeWithApp runs prune against a wired app (for testing).
func (c *PruneCommand) executeWithApp(ctx context.Context, a *app) error {
	policy := a.policy
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		policy.MaxAge = d
	}

	// Load without retention so the stored log is counted as it is.
	log := activitylog.New(a.store, activitylog.Policy{}, a.logger)
	log.Location = a.loc
	if err := log.Load(ctx); err != nil {
		return err
	}
	before := log.Len()

	now := log.Now()
	removed := 0
	if c.DryRun {
		removed = before - len(policy.Apply(log.Entries(), now, a.loc))
	} else {
		n, err := log.PruneWith(ctx, policy)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		removed = n
	}

	horizon := policy.Horizon(now, a.loc)
	if c.globals != nil && c.globals.JSON {
		out := pruneJSON{DryRun: c.DryRun, Removed: removed, Kept: before - removed}
		if !horizon.IsZero() {
			out.Horizon = horizon.UTC().Format(time.RFC3339)
		}
		return printJSON(out)
	}

	verb := "Pruned"
	if c.DryRun {
		verb = "Would prune"
	}
	if horizon.IsZero() {
		fmt.Printf("%s %d entries over the %d entry cap.\n", verb, removed, policy.MaxEntries)
	} else {
		fmt.Printf("%s %d entries outside %s (before %s).\n", verb, removed, describeRetention(policy), horizon.In(a.loc).Format("2006-01-02 15:04"))
	}
	fmt.Printf("%d entries remain.\n", before-removed)
	return nil
}

// describeRetention names the period a policy keeps.
func describeRetention(p activitylog.Policy) string {
	switch {
	case p.MaxAge > 0:
		return "the last " + formatDurationHuman(p.MaxAge)
	case p.Mode == activitylog.ModeRolling24h:
		return "the last 24 hours"
	case p.Days == 1:
		return "today"
	default:
		return fmt.Sprintf("the last %d calendar days", p.Days)
	}
}
