package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Retention: RetentionConfig{
			Mode:               "calendar",
			Days:               30,
			MaxEntries:         10000,
			PruneIntervalHours: 24,
		},
		Capture: CaptureConfig{
			ExcludedSchemes: []string{
				"chrome", "chrome-extension", "chrome-untrusted", "devtools",
				"edge", "about", "moz-extension", "view-source",
			},
			DenylistDomains: []string{},
			DenylistRegex:   []string{},
		},
		History: HistoryConfig{
			ChromePath:      "",
			VisitCapMinutes: 30,
			MaxResults:      10000,

			ReloadBeforeCommands: true,
		},
		Aggregation: AggregationConfig{
			Key:      "domain",
			Order:    "chronological",
			Timezone: "",
		},
		Summarizer: SummarizerConfig{
			Provider:        "bedrock",
			Model:           "anthropic.claude-3-5-haiku-20241022-v1:0",
			Region:          "us-east-1",
			BaseURL:         "",
			APIKeyEnv:       "",
			AccessKeyEnv:    "AWS_ACCESS_KEY_ID",
			SecretKeyEnv:    "AWS_SECRET_ACCESS_KEY",
			SessionTokenEnv: "AWS_SESSION_TOKEN",
			TimeoutSeconds:  60,
			MaxTokens:       8192,
			Temperature:     0.8,
			TopP:            0.95,
			TimeMode:        "range",
			Input:           "aggregates",
		},
		Export: ExportConfig{
			Dir:      "~/Downloads",
			Compress: false,
			Format:   "entries",
		},
		Storage: StorageConfig{
			Path:       "~/.config/timesheet",
			Backend:    "sqlite",
			SQLiteFile: "timesheet.db",
			BadgerDir:  "badger",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			AuthToken:      "",
			MaxRequestSize: 10485760,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}
