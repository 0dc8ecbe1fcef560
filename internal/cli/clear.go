package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached profile and decision",
		Long: `Delete every cached profile, including recorded decisions.

Examples:
  profilesync clear --db ./profiles.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(rootOpts, cmd)
		},
	}
}

func runClear(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.DeleteAll(commandContext(cmd))
	if err != nil {
		return reportFailure(a.formatter, ExitFailure, ErrCodeDatabase, "failed to clear cache", err)
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(map[string]int64{"deleted": n})
	}
	fmt.Fprintf(a.formatter.Writer, "✓ Deleted %d profile(s)\n", n)
	return nil
}
