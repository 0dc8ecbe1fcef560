package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDedupeCommand creates the dedupe command.
func NewDedupeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Collapse duplicate profile records",
		Long: `Keep one record per profile id, the most recently updated one, and print
how many rows were removed. Safe to run repeatedly.

Examples:
  profilesync dedupe --db ./profiles.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupe(rootOpts, cmd)
		},
	}
}

func runDedupe(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.RemoveDuplicates(commandContext(cmd))
	if err != nil {
		return reportFailure(a.formatter, ExitFailure, ErrCodeDatabase, "failed to remove duplicates", err)
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(map[string]int64{"removed": n})
	}
	fmt.Fprintf(a.formatter.Writer, "✓ Removed %d duplicate(s)\n", n)
	return nil
}
