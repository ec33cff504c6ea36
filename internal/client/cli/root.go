// Package cli implements the medsync replica command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config    string // путь к YAML конфигу, пусто = только defaults и env
	ServerURL string // перекрывает server_url из конфига
	CachePath string // перекрывает cache_path из конфига
	Format    string // "json" | "text"
	Verbose   bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the replica CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "medsync",
		Short:   "medsync replica",
		Long:    "Mirrors the medication list of the authoritative node and sends take/skip/snooze commands to it.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "authoritative node URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.CachePath, "cache", "", "path to local snapshot cache (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	for _, def := range actionCommands {
		cmd.AddCommand(newActionCommand(opts, def))
	}
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
