package cli

import (
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one load cycle and print the cached profiles",
		Long: `Run a single load cycle: read the cache, then, when the remote is
reachable and --offline is not set, fetch a batch, merge it into the cache
and print the result. Recorded decisions are kept.

Exit codes:
  0 - Cycle completed (including an offline, cache-only cycle)
  1 - Refresh failed; the cached profiles are printed anyway
  2 - Command error (invalid config, database cannot be opened)

Examples:
  profilesync sync --db ./profiles.db
  profilesync sync --config ./profilesync.yaml --format json
  profilesync sync --offline`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	conn, monitor, err := a.newConnectivity(opts.Offline)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid connectivity config", err)
	}
	if monitor != nil {
		online := monitor.Check(ctx)
		a.formatter.VerboseLog("Connectivity probe: online=%t", online)
	}

	sy, err := a.newSyncer(opts, conn)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid fetch config", err)
	}
	defer sy.Close()

	loadErr := sy.Load(ctx)
	return outputState(a.formatter, sy.Snapshot(), loadErr)
}
