package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/syncer"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string // overrides database.path
	Endpoint   string // overrides fetch.endpoint
	Verbose    bool
	Format     string // "json" | "text"
	LogFormat  string // overrides log.format
	Offline    bool   // skip network refresh regardless of connectivity

	// Clock and CycleIDs allow overriding time and cycle ids (for testing).
	// If nil, the wall clock and UUIDv7 ids are used.
	Clock    func() time.Time
	CycleIDs syncer.CycleIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the profilesync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profilesync",
		Short: "Profile sync - offline-first profile cache",
		Long: `Synchronize remote candidate profiles into a local SQLite cache.

Profiles are fetched in batches, merged without duplicates, and every
accept/decline decision survives later refreshes. When the network is
unavailable the cached profiles are served as-is.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.LogFormat != "" && !slices.Contains(ValidFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	flags.StringVar(&opts.Endpoint, "endpoint", "", "remote profile endpoint (overrides config)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format on stderr (json|text)")
	flags.BoolVar(&opts.Offline, "offline", false, "never attempt a network refresh")

	// Add subcommands
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDecideCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewDedupeCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
