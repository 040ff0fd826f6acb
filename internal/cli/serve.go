package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/timesheet/internal/logging"
	"github.com/runnerr0/timesheet/internal/recorder"
	"github.com/runnerr0/timesheet/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	a, err := openApp(c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, addr, err := c.newServer(ctx, a)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, addr)
}

// newServer loads the log and wires the recorder and HTTP bridge. Flag
// overrides win over configuration.
func (c *ServeCommand) newServer(ctx context.Context, a *app) (*server.Server, string, error) {
	if c.LogLevel != "" {
		lvl, err := logging.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, "", err
		}
		a.logger = logging.NewWithWriter(os.Stderr, lvl)
		a.log.Logger = a.logger
		a.svc.Logger = a.logger
	}

	if err := a.load(ctx); err != nil {
		return nil, "", err
	}
	if _, err := a.log.CloseStale(ctx, a.visitCap()); err != nil {
		return nil, "", err
	}

	daemon := a.cfg.Daemon
	if c.Host != "" {
		daemon.Host = c.Host
	}
	if c.Port != 0 {
		daemon.Port = c.Port
	}
	if c.AuthToken != "" {
		daemon.AuthToken = c.AuthToken
	}
	addr := fmt.Sprintf("%s:%d", daemon.Host, daemon.Port)

	tabs := recorder.NewTabCache()
	srv := &server.Server{
		Recorder:       recorder.New(a.log, tabs, a.filter, a.logger),
		Tabs:           tabs,
		Service:        a.svc,
		Log:            a.log,
		Version:        c.version,
		AuthToken:      daemon.AuthToken,
		MaxRequestSize: int64(daemon.MaxRequestSize),
		PruneInterval:  time.Duration(a.cfg.Retention.PruneIntervalHours) * time.Hour,
		Logger:         a.logger,
	}

	a.logger.Info("timesheet daemon starting",
		"version", c.version,
		"addr", addr,
		"backend", a.cfg.Storage.Backend,
		"entries", a.log.Len(),
		"summarizer", a.svc.Summarizer.Completer != nil,
	)
	return srv, addr, nil
}
