package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/medsync/internal/client/iocli"
	"github.com/iudanet/medsync/internal/models"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "medsync", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"watch", "list", "take", "skip", "snooze", "status", "demo", "version"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "server", "cache"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.NotNil(t, listCmd.Flags().Lookup("remote"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(context.Background(), "--format", "xml", "version")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestActionCommand_RequiresRecordID(t *testing.T) {
	_, err := execute(context.Background(), "take")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+Version)

	out, err = execute(context.Background(), "--format", "json", "version")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "exit error", err: NewExitError(ExitCommandError, "bad flag"), want: ExitCommandError},
		{name: "wrapped", err: WrapExitError(ExitFailure, "dropped", errors.New("x")), want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapExitError(ExitFailure, "authoritative node unreachable", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "authoritative node unreachable: connection refused", err.Error())
	assert.Equal(t, "no snapshot", NewExitError(ExitFailure, "no snapshot").Error())
}

func TestPrintRecords(t *testing.T) {
	t.Run("pipe output is tab separated", func(t *testing.T) {
		var buf syncBuffer
		require.NoError(t, printRecords(iocli.NewWriter(&buf), "text", sampleRecords()))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "r1\tAspirin\t100mg\t08:00\tPENDING", lines[0])
		assert.Equal(t, "r2\tMetformin\t500mg\t09:00\tTAKEN", lines[1])
	})

	t.Run("json", func(t *testing.T) {
		var buf syncBuffer
		require.NoError(t, printRecords(iocli.NewWriter(&buf), "json", sampleRecords()))

		var got []models.Record
		require.NoError(t, json.Unmarshal([]byte(buf.String()), &got))
		assert.Equal(t, sampleRecords(), got)
	})

	t.Run("empty json is an array", func(t *testing.T) {
		var buf syncBuffer
		require.NoError(t, printRecords(iocli.NewWriter(&buf), "json", nil))
		assert.Equal(t, "[]\n", buf.String())
	})
}
