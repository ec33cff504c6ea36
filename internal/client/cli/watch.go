package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/medsync/internal/client/iocli"
	"github.com/iudanet/medsync/internal/models"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror the authoritative list and print every change",
		Long: `Subscribe to the authoritative node's snapshot channel and print the
mirrored medication list each time it changes. The cached snapshot is shown
first, so the last known list is visible even while the node is offline.
Runs until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(commandContext(cmd), rootOpts, cmd)
		},
	}

	return cmd
}

func runWatch(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	rep, err := openReplica(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rep.Close()

	out := outputFor(cmd)

	// первый вызов Observe - текущее (пустое) состояние, его не печатаем
	ready := false
	sub := rep.repo.Observe(func(records []models.Record) {
		if !ready {
			return
		}
		rep.touch(ctx)
		if err := printChange(out, opts.Format, records); err != nil {
			rep.logger.Error("failed to print records", "error", err)
		}
	})
	defer sub.Unsubscribe()
	ready = true

	if err := rep.svc.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to start replica sync", err)
	}
	rep.logger.Info("Watching for snapshots", "server", rep.cfg.ServerURL, "node_id", rep.nodeID)

	<-ctx.Done()
	return nil
}

func printChange(out iocli.IO, format string, records []models.Record) error {
	if format == "json" {
		return printRecords(out, format, records)
	}
	out.Printf("== %s  %d record(s)\n", time.Now().Format(time.TimeOnly), len(records))
	if err := printRecords(out, format, records); err != nil {
		return err
	}
	out.Println()
	return nil
}
