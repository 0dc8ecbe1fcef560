package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/config"
	"github.com/roach88/profilesync/internal/connectivity"
	"github.com/roach88/profilesync/internal/fetcher"
	"github.com/roach88/profilesync/internal/metrics"
	"github.com/roach88/profilesync/internal/reconcile"
	"github.com/roach88/profilesync/internal/store"
	"github.com/roach88/profilesync/internal/syncer"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
	store     *store.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
}

// newApp loads config, applies flag overrides, configures logging and opens
// the store. Callers must Close the result.
func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, reportFailure(formatter, ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	applyOverrides(cfg, opts)

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose)
	slog.SetDefault(logger)

	var storeOpts []store.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Clock))
	}
	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path, storeOpts...)
	if err != nil {
		return nil, reportFailure(formatter, ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}

	registry := prometheus.NewRegistry()
	return &app{
		cfg:       cfg,
		logger:    logger,
		formatter: formatter,
		store:     st,
		registry:  registry,
		metrics:   metrics.New(registry),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func applyOverrides(cfg *config.Config, opts *RootOptions) {
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Endpoint != "" {
		cfg.Fetch.Endpoint = opts.Endpoint
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// newFetcher builds the remote client from config.
func (a *app) newFetcher() (*fetcher.Client, error) {
	retryOn, err := fetcher.ParseRetryMode(a.cfg.Fetch.RetryMode)
	if err != nil {
		return nil, err
	}
	return fetcher.New(fetcher.Config{
		Endpoint: a.cfg.Fetch.Endpoint,
		Timeout:  a.cfg.Fetch.Timeout.Std(),
		Retry: fetcher.RetryPolicy{
			MaxAttempts: a.cfg.Fetch.MaxAttempts,
			BaseDelay:   a.cfg.Fetch.BaseDelay.Std(),
			RetryOn:     retryOn,
		},
		Logger:  a.logger.With("component", "fetcher"),
		Metrics: a.metrics,
	})
}

// newConnectivity returns the online gate. With offline set it is always
// offline; otherwise it is a monitor probing the configured address.
func (a *app) newConnectivity(offline bool) (syncer.Connectivity, *connectivity.Monitor, error) {
	if offline {
		a.metrics.SetOnline(false)
		return connectivity.NewStatic(false), nil, nil
	}
	addr, err := a.cfg.ProbeAddress()
	if err != nil {
		return nil, nil, err
	}
	m := connectivity.NewMonitor(
		connectivity.DialProbe{Address: addr, Timeout: a.cfg.Connectivity.Timeout.Std()},
		connectivity.WithInterval(a.cfg.Connectivity.Interval.Std()),
		connectivity.WithLogger(a.logger.With("component", "connectivity")),
		connectivity.WithMetrics(a.metrics),
	)
	return m, m, nil
}

// newSyncer wires the orchestrator over the app's store.
func (a *app) newSyncer(opts *RootOptions, conn syncer.Connectivity) (*syncer.Syncer, error) {
	client, err := a.newFetcher()
	if err != nil {
		return nil, err
	}
	return syncer.New(syncer.Config{
		Store:   a.store,
		Fetcher: client,
		Reconciler: reconcile.New(a.store,
			reconcile.WithLogger(a.logger.With("component", "reconcile")),
			reconcile.WithMetrics(a.metrics),
		),
		Connectivity: conn,
		BatchSize:    a.cfg.Fetch.Count,
		Logger:       a.logger.With("component", "syncer"),
		Metrics:      a.metrics,
		IDs:          opts.CycleIDs,
	})
}
