package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/api"
	"github.com/roach88/profilesync/internal/profile"
	"github.com/roach88/profilesync/internal/store"
)

// NewDecideCommand creates the decide command.
func NewDecideCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decide <id> <accept|decline|none>",
		Short: "Record a decision for a cached profile",
		Long: `Record an accept/decline decision for a cached profile. The decision is
stored locally and survives later refreshes. "none" resets it.

Exit codes:
  0 - Decision saved
  1 - Unknown profile id, or the decision could not be saved
  2 - Command error (invalid decision, database cannot be opened)

Examples:
  profilesync decide 1f0c6a52-7e1b-4d8a-9f0e-0d2f5c3b9a11 accept
  profilesync decide 1f0c6a52-7e1b-4d8a-9f0e-0d2f5c3b9a11 none --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecide(rootOpts, cmd, args[0], args[1])
		},
	}
}

func runDecide(opts *RootOptions, cmd *cobra.Command, id, rawDecision string) error {
	ctx := commandContext(cmd)

	decision, err := profile.ParseDecision(rawDecision)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid decision", err)
	}

	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.store.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reportFailure(a.formatter, ExitFailure, ErrCodeInvalidArgs, fmt.Sprintf("no cached profile with id %q", id), nil)
		}
		return reportFailure(a.formatter, ExitFailure, ErrCodeDatabase, "failed to read profile", err)
	}

	// Decisions never touch the network.
	conn, _, err := a.newConnectivity(true)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid connectivity config", err)
	}
	sy, err := a.newSyncer(opts, conn)
	if err != nil {
		return reportFailure(a.formatter, ExitCommandError, ErrCodeConfig, "invalid fetch config", err)
	}
	defer sy.Close()

	if err := sy.RecordDecision(ctx, id, decision); err != nil {
		return outputState(a.formatter, sy.Snapshot(), err)
	}

	updated, err := a.store.Get(ctx, id)
	if err != nil {
		return reportFailure(a.formatter, ExitFailure, ErrCodeDatabase, "failed to read profile", err)
	}
	if a.formatter.Format == "json" {
		return a.formatter.Success(api.NewProfileViews([]profile.StoredProfile{updated})[0])
	}
	fmt.Fprintf(a.formatter.Writer, "✓ %s (%s): %s\n", updated.FullName, updated.ID, updated.Decision)
	return nil
}
