package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve     *ServeCommand
	Export    *ExportCommand
	Summarize *SummarizeCommand
	Status    *StatusCommand
	Prune     *PruneCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "timesheet"
	parser.LongDescription = "Local browsing-activity timesheets: live tab tracking, history reload, CSV export and summaries."

	cmds := &commands{
		Serve:     &ServeCommand{globals: &globals, version: version},
		Export:    &ExportCommand{globals: &globals, version: version},
		Summarize: &SummarizeCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
		Prune:     &PruneCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Start the timesheet daemon", "Start the timesheet daemon (local HTTP service for the browser extension).", cmds.Serve)
	parser.AddCommand("export", "Export a day as CSV", "Export a day's activity as a CSV file in the export directory.", cmds.Export)
	parser.AddCommand("summarize", "Summarize a day into a timesheet", "Summarize a day's activity into a timesheet with the configured provider.", cmds.Summarize)
	parser.AddCommand("status", "Show log statistics and daemon health", "Show activity log statistics, daemon health and configuration summary.", cmds.Status)
	parser.AddCommand("prune", "Apply retention", "Apply the retention policy to remove old entries.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL timesheet data", "Delete ALL timesheet data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the timesheet CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("timesheet %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
