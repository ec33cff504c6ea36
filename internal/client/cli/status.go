package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/iudanet/medsync/internal/client/storage"
	"github.com/iudanet/medsync/internal/codec"
	"github.com/iudanet/medsync/internal/transport"
)

// StatusReport describes the replica and its view of the authoritative node
type StatusReport struct {
	NodeID        string `json:"node_id"`
	Server        string `json:"server"`
	ServerStatus  string `json:"server_status"`
	ServerNodeID  string `json:"server_node_id,omitempty"`
	ServerRole    string `json:"server_role,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
	CachedVersion int64  `json:"cached_version"`
	CachedRecords int    `json:"cached_records"`
	LastSync      int64  `json:"last_sync"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show replica identity, cache state and authoritative node health",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(commandContext(cmd), rootOpts, cmd)
		},
	}
}

func runStatus(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	rep, err := openReplica(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rep.Close()

	report := StatusReport{
		NodeID:       rep.nodeID,
		Server:       rep.cfg.ServerURL,
		ServerStatus: "unreachable",
	}

	// Недоступный сервер - нормальная ситуация для реплики, не ошибка команды
	if health, err := rep.client.Health(ctx); err == nil {
		report.ServerStatus = health.Status
		report.ServerNodeID = health.NodeID
		report.ServerRole = health.Role
		report.ServerVersion = health.Version
	} else {
		rep.logger.Debug("Health check failed", "error", err)
	}

	item, err := rep.cache.GetDataItem(ctx, transport.SnapshotPath)
	switch {
	case err == nil:
		report.CachedVersion = item.Version
		if records, decErr := codec.Decode(item.Payload); decErr == nil {
			report.CachedRecords = len(records)
		}
	case errors.Is(err, storage.ErrItemNotFound):
	default:
		return WrapExitError(ExitCommandError, "failed to read snapshot cache", err)
	}

	if report.LastSync, err = rep.cache.GetLastSyncTimestamp(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read last sync time", err)
	}

	out := outputFor(cmd)
	if opts.Format == "json" {
		return printJSON(out, report)
	}

	out.Printf("Node ID:        %s\n", report.NodeID)
	out.Printf("Server:         %s (%s)\n", report.Server, report.ServerStatus)
	if report.ServerNodeID != "" {
		out.Printf("Server node:    %s, role %s, version %s\n", report.ServerNodeID, report.ServerRole, report.ServerVersion)
	}
	out.Printf("Cached version: %s\n", describeVersion(report.CachedVersion))
	out.Printf("Cached records: %d\n", report.CachedRecords)
	out.Printf("Last sync:      %s\n", formatTimestamp(report.LastSync))
	return nil
}
