package cli

import "github.com/runnerr0/timesheet/internal/storage"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (.yaml or .toml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand — run the local daemon the browser extension talks to.
type ServeCommand struct {
	Host      string `long:"host" description:"Override listen host"`
	Port      int    `long:"port" description:"Override daemon port"`
	LogLevel  string `long:"log-level" description:"Override log level"`
	AuthToken string `long:"auth-token" description:"Require this bearer token on /v1 routes" env:"TIMESHEET_AUTH_TOKEN"`

	globals *GlobalFlags
	version string
}

// ExportCommand — write a day's activity as CSV.
type ExportCommand struct {
	Date     string `long:"date" description:"Day to export (YYYY-MM-DD, default today)"`
	Format   string `long:"format" description:"Rows: entries | aggregates | live"`
	Dir      string `long:"dir" description:"Override export directory"`
	Compress bool   `long:"compress" description:"Write a zstd-compressed .csv.zst"`
	Reload   bool   `long:"reload" description:"Rebuild the day from browser history first"`

	globals *GlobalFlags
	version string
}

// SummarizeCommand — summarize a day into a timesheet.
type SummarizeCommand struct {
	Date   string `long:"date" description:"Day to summarize (YYYY-MM-DD, default today)"`
	Reload bool   `long:"reload" description:"Rebuild the day from browser history first"`
	Cached bool   `long:"cached" description:"Print the last stored summary instead"`

	globals *GlobalFlags
	version string
}

// StatusCommand — show log statistics, daemon health and config summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PruneCommand — apply retention to the stored log.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand — delete ALL timesheet data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   storage.Store // injectable for testing; nil means open the configured store
}
