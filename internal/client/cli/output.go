package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/iudanet/medsync/internal/client/iocli"
	"github.com/iudanet/medsync/internal/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Command dropped, node unreachable, no snapshot yet
	ExitCommandError = 2 // Command error (bad flags, config, cache cannot be opened)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Err     error  // Underlying error (optional)
	Message string // Error message
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printJSON пишет одно значение JSON строкой
func printJSON(out iocli.IO, v any) error {
	return json.NewEncoder(out).Encode(v)
}

// printRecords выводит список записей. В терминале - выровненная таблица,
// в пайпе - строки через табуляцию без заголовка, удобные для cut/awk.
func printRecords(out iocli.IO, format string, records []models.Record) error {
	if format == "json" {
		return printJSON(out, models.CloneRecords(records))
	}

	if !out.IsTerminal() {
		for _, r := range records {
			out.Printf("%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Dosage, r.PrimaryTime(), r.Status)
		}
		return nil
	}

	if len(records) == 0 {
		out.Println("No medications.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tDOSAGE\tNEXT\tSTATUS")
	for _, r := range records {
		next := r.PrimaryTime()
		if next == "" {
			next = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Dosage, next, r.Status)
	}
	return tw.Flush()
}
