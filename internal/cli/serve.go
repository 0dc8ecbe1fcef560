package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/profilesync/internal/api"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides server.addr

	// OnListen is called with the bound address once the server accepts
	// connections (for testing, with Addr "127.0.0.1:0").
	OnListen func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync orchestrator and HTTP API",
		Long: `Start the connectivity monitor, run an initial load cycle and serve the
published state over HTTP until interrupted.

Routes:
  GET    /profiles                 published profiles, error and online flag
  POST   /profiles/{id}/decision   {"decision":"accepted"}
  POST   /refresh                  start a new load cycle (202)
  DELETE /error                    clear the published error
  GET    /healthz                  liveness
  GET    /metrics                  Prometheus metrics

Example:
  profilesync serve --db ./profiles.db --addr 127.0.0.1:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	conn, _, err := a.newConnectivity(opts.Offline)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid connectivity config", err)
	}
	sy, err := a.newSyncer(opts.RootOptions, conn)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid fetch config", err)
	}
	defer sy.Close()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}

	handler := api.New(sy, a.logger.With("component", "api"), a.registry)
	srv := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}

	if err := sy.Start(ctx); err != nil {
		ln.Close()
		return WrapExitError(ExitFailure, "failed to start syncer", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})

	bound := ln.Addr().String()
	a.logger.Info("serving", "addr", bound, "db", a.cfg.Database.Path)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", bound)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.OnListen != nil {
		opts.OnListen(bound)
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	if err := sy.Close(); err != nil {
		a.logger.Error("error closing syncer", "error", err)
	}
	a.logger.Info("server stopped gracefully")
	return nil
}
