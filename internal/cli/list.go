package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/api"
	"github.com/roach88/profilesync/internal/profile"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Decision string // optional filter
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print cached profiles without touching the network",
		Long: `Print every cached profile ordered by full name.

Examples:
  profilesync list --db ./profiles.db
  profilesync list --decision accepted --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Decision, "decision", "", "only show profiles with this decision (accepted|declined|none)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	var filter profile.Decision
	if opts.Decision != "" {
		d, err := profile.ParseDecision(opts.Decision)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --decision", err)
		}
		filter = d
	}

	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.store.FetchAll(ctx)
	if err != nil {
		return reportFailure(a.formatter, ExitFailure, ErrCodeCacheLoad, "failed to read cached profiles", err)
	}

	profiles := all
	if filter != "" {
		profiles = make([]profile.StoredProfile, 0, len(all))
		for _, p := range all {
			if p.Decision == filter {
				profiles = append(profiles, p)
			}
		}
	}

	if a.formatter.Format == "json" {
		return a.formatter.Success(map[string]any{
			"profiles": api.NewProfileViews(profiles),
			"count":    len(profiles),
		})
	}
	printProfiles(a.formatter.Writer, profiles)
	if filter != "" {
		a.formatter.VerboseLog("%d of %d profile(s) match decision %s", len(profiles), len(all), filter)
	} else {
		a.formatter.VerboseLog("%d profile(s)", len(profiles))
	}
	return nil
}
