package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/medsync/internal/codec"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the mirrored medication list",
		Long: `Print the last mirrored medication list. The local snapshot cache is used
when present; otherwise the latest snapshot is fetched from the authoritative
node and cached.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(commandContext(cmd), rootOpts, cmd, remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch from the authoritative node even if a cached snapshot exists")

	return cmd
}

func runList(ctx context.Context, opts *RootOptions, cmd *cobra.Command, remote bool) error {
	rep, err := openReplica(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rep.Close()

	item, err := rep.snapshot(ctx, remote)
	if err != nil {
		return err
	}

	records, err := codec.Decode(item.Payload)
	if err != nil {
		return WrapExitError(ExitFailure, "snapshot is malformed", err)
	}

	rep.logger.Debug("Snapshot loaded", "version", item.Version, "records", len(records))
	return printRecords(outputFor(cmd), opts.Format, records)
}
