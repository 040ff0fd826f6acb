package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/runnerr0/timesheet/internal/activity"
	"github.com/runnerr0/timesheet/internal/activitylog"
	"github.com/runnerr0/timesheet/internal/aggregate"
	"github.com/runnerr0/timesheet/internal/config"
	"github.com/runnerr0/timesheet/internal/export"
	"github.com/runnerr0/timesheet/internal/history"
	"github.com/runnerr0/timesheet/internal/logging"
	"github.com/runnerr0/timesheet/internal/service"
	"github.com/runnerr0/timesheet/internal/storage"
	"github.com/runnerr0/timesheet/internal/summarize"
)

// app is the wired engine shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.Store
	log    *activitylog.Log
	filter *activity.Filter
	policy activitylog.Policy
	loc    *time.Location
	svc    *service.Service

	closers []io.Closer
}

// loadConfig reads --config, or the default file, creating it on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		path, err := config.ExpandPath(globals.Config)
		if err != nil {
			return nil, err
		}
		return config.LoadOrCreateAt(path)
	}
	return config.LoadOrCreate()
}

// openApp loads configuration and opens the configured store.
func openApp(globals *GlobalFlags) (*app, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}
	if globals != nil && globals.Verbose {
		cfg.Logging.Level = "debug"
	}

	logFile, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(cfg.Logging.Level, logFile)
	if err != nil {
		return nil, err
	}

	location, err := cfg.StorageLocation()
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.Backend, location)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	a, err := newApp(cfg, store, logger)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, err
	}
	a.closers = append(a.closers, logCloser)
	return a, nil
}

// newApp wires the engine over an already opened store. The log is not
// loaded yet; commands call load when they need it.
func newApp(cfg *config.Config, store storage.Store, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, store: store}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.loc = loc

	mode, err := activitylog.ParseMode(cfg.Retention.Mode)
	if err != nil {
		return nil, err
	}
	a.policy = activitylog.Policy{
		MaxEntries: cfg.Retention.MaxEntries,
		Mode:       mode,
		Days:       cfg.Retention.Days,
	}

	a.filter, err = activity.NewFilter(cfg.Capture.ExcludedSchemes, cfg.Capture.DenylistDomains, cfg.Capture.DenylistRegex)
	if err != nil {
		return nil, fmt.Errorf("capture rules: %w", err)
	}

	a.log = activitylog.New(store, a.policy, logger)
	a.log.Location = loc

	normalizer := history.NewNormalizer(nil, a.filter, logger)
	if cfg.History.VisitCapMinutes > 0 {
		normalizer.Cap = time.Duration(cfg.History.VisitCapMinutes) * time.Minute
	}
	if cfg.History.MaxResults > 0 {
		normalizer.MaxResults = cfg.History.MaxResults
	}

	key, err := aggregate.ParseKey(cfg.Aggregation.Key)
	if err != nil {
		return nil, err
	}
	order, err := aggregate.ParseOrder(cfg.Aggregation.Order)
	if err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return nil, err
	}
	exportDir, err := cfg.ExportDir()
	if err != nil {
		return nil, err
	}

	summarizer, err := newSummarizer(cfg, loc, logger)
	if err != nil {
		return nil, err
	}
	var rawEntries bool
	switch cfg.Summarizer.Input {
	case "", "aggregates":
	case "entries":
		rawEntries = true
	default:
		return nil, fmt.Errorf("unknown summarizer input %q (want aggregates or entries)", cfg.Summarizer.Input)
	}

	// Opened last so no earlier failure leaks the handle.
	if cfg.History.ChromePath != "" {
		path, err := config.ExpandPath(cfg.History.ChromePath)
		if err != nil {
			return nil, err
		}
		chrome, err := history.OpenChrome(path)
		if err != nil {
			return nil, fmt.Errorf("open chrome history: %w", err)
		}
		normalizer.Source = chrome
		a.closers = append(a.closers, chrome)
	}

	a.svc = &service.Service{
		Log:          a.log,
		Store:        store,
		Summarizer:   summarizer,
		Normalizer:   normalizer,
		AutoReload:   cfg.History.ReloadBeforeCommands,
		Downloader:   export.FileDownloader{Dir: exportDir, Compress: cfg.Export.Compress},
		ExportFormat: format,
		Key:          key,
		Order:        order,
		Location:     loc,
		Logger:       logger,
	}
	a.svc.SummarizeEntries = rawEntries
	return a, nil
}

// newSummarizer builds the summarizer. A provider without credentials
// leaves it unconfigured so summarize reports that instead of failing
// every other command.
func newSummarizer(cfg *config.Config, loc *time.Location, logger *slog.Logger) (*summarize.Summarizer, error) {
	sc := cfg.Summarizer
	mode := summarize.Mode(sc.TimeMode)
	switch mode {
	case "":
		mode = summarize.ModeTimeRange
	case summarize.ModeTimeRange, summarize.ModeTimeStamp:
	default:
		return nil, fmt.Errorf("unknown summarizer time_mode %q", sc.TimeMode)
	}

	timeout := cfg.SummarizerTimeout()
	if timeout <= 0 {
		timeout = summarize.DefaultTimeout
	}

	s := &summarize.Summarizer{
		Builder:     summarize.Builder{Mode: mode, Location: loc},
		Timeout:     timeout,
		MaxTokens:   sc.MaxTokens,
		Temperature: sc.Temperature,
		TopP:        sc.TopP,
		Logger:      logger,
	}

	completer, err := summarize.NewCompleter(context.Background(), summarize.ProviderConfig{
		Provider:        sc.Provider,
		Model:           sc.Model,
		Region:          sc.Region,
		BaseURL:         sc.BaseURL,
		APIKeyEnv:       sc.APIKeyEnv,
		AccessKeyEnv:    sc.AccessKeyEnv,
		SecretKeyEnv:    sc.SecretKeyEnv,
		SessionTokenEnv: sc.SessionTokenEnv,
	})
	switch {
	case errors.Is(err, summarize.ErrNotConfigured):
		logger.Debug("summarizer disabled", "reason", err)
	case err != nil:
		return nil, err
	default:
		s.Completer = completer
	}
	return s, nil
}

// load reads the stored log, applying retention.
// visitCap bounds the time credited to one page without a following event.
func (a *app) visitCap() time.Duration {
	return a.svc.Normalizer.Cap
}

func (a *app) load(ctx context.Context) error {
	return a.log.Load(ctx)
}

// Close releases the store, history database and log file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}
