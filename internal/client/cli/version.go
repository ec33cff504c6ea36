package cli

import (
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Show version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFor(cmd)
			if rootOpts.Format == "json" {
				return printJSON(out, map[string]string{
					"version":    Version,
					"build_date": BuildDate,
					"git_commit": GitCommit,
				})
			}
			out.Printf("medsync replica\n")
			out.Printf("Version:    %s\n", Version)
			out.Printf("Build Date: %s\n", BuildDate)
			out.Printf("Git Commit: %s\n", GitCommit)
			return nil
		},
	}
}
