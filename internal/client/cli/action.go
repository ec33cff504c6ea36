package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	clientsync "github.com/iudanet/medsync/internal/client/sync"
	"github.com/iudanet/medsync/internal/models"
)

// Результаты отправки команды
const (
	ResultSent   = "sent"
	ResultNoPeer = "no reachable peer"
	ResultFailed = "failed"
)

// ActionResult is the outcome of a take/skip/snooze command.
// "sent" only means the command was handed to the transport; the new status
// shows up in the next snapshot.
type ActionResult struct {
	Action   string `json:"action"`
	RecordID string `json:"record_id"`
	Result   string `json:"result"`
	Error    string `json:"error,omitempty"`
}

type actionDef struct {
	name   string
	short  string
	action models.Action
}

var actionCommands = []actionDef{
	{name: "take", short: "Ask the authoritative node to mark a dose as taken", action: models.ActionTake},
	{name: "skip", short: "Ask the authoritative node to mark a dose as skipped", action: models.ActionSkip},
	{name: "snooze", short: "Ask the authoritative node to snooze a dose", action: models.ActionSnooze},
}

func newActionCommand(rootOpts *RootOptions, def actionDef) *cobra.Command {
	return &cobra.Command{
		Use:           def.name + " <record-id>",
		Short:         def.short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(commandContext(cmd), rootOpts, cmd, def.action, args[0])
		},
	}
}

func runAction(ctx context.Context, opts *RootOptions, cmd *cobra.Command, action models.Action, recordID string) error {
	// id уходит в канал команд без изменений
	switch {
	case recordID == "":
		return NewExitError(ExitCommandError, "record id must not be empty")
	case strings.TrimSpace(recordID) != recordID:
		return NewExitError(ExitCommandError, "record id must not have leading or trailing whitespace")
	}

	rep, err := openReplica(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rep.Close()

	res := ActionResult{
		Action:   action.String(),
		RecordID: recordID,
		Result:   ResultSent,
	}

	var exitErr error
	sendErr := <-rep.svc.SendCommand(ctx, recordID, action)
	switch {
	case sendErr == nil:
	case errors.Is(sendErr, clientsync.ErrNoReachablePeer):
		res.Result = ResultNoPeer
		exitErr = NewExitError(ExitFailure, "command dropped: no reachable peer")
	default:
		res.Result = ResultFailed
		res.Error = sendErr.Error()
		exitErr = WrapExitError(ExitFailure, "command failed", sendErr)
	}

	out := outputFor(cmd)
	if opts.Format == "json" {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		out.Printf("%s %s: %s\n", res.Action, res.RecordID, res.Result)
	}

	return exitErr
}
