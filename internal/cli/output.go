package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/viniciuscfreitas/gtdflow/internal/record"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The request was understood but refused (not found, not undoable)
	ExitCommandError = 2 // Command error (bad flags, database unavailable, write failed)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool

	warnings []string
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status   string      `json:"status"`             // "ok" or "error"
	Data     interface{} `json:"data,omitempty"`     // success payload
	Error    *CLIError   `json:"error,omitempty"`    // error details
	Warnings []string    `json:"warnings,omitempty"` // partial failures, e.g. a pair left untouched
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // record error code or "COMMAND_ERROR"
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:   "ok",
			Data:     data,
			Warnings: f.takeWarnings(),
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	f.flushWarnings()
	return nil
}

// Result outputs data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Result(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.Success(data)
	}
	text(f.Writer)
	f.flushWarnings()
	return nil
}

// Warn queues a warning for the next response. JSON responses carry it in
// "warnings"; text output prints it on the error writer after the result.
func (f *OutputFormatter) Warn(format string, args ...interface{}) {
	f.warnings = append(f.warnings, fmt.Sprintf(format, args...))
}

func (f *OutputFormatter) takeWarnings() []string {
	w := f.warnings
	f.warnings = nil
	return w
}

func (f *OutputFormatter) flushWarnings() {
	for _, w := range f.takeWarnings() {
		fmt.Fprintf(f.GetErrWriter(), "warning: %s\n", w)
	}
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and converts it into an ExitError.
// NotFound and NotUndoable exit with ExitFailure; everything else with
// ExitCommandError.
func (f *OutputFormatter) Fail(message string, err error) error {
	code := string(record.CodeOf(err))
	exit := ExitCommandError
	switch record.CodeOf(err) {
	case record.ErrCodeNotFound, record.ErrCodeNotUndoable:
		exit = ExitFailure
	case "":
		code = "COMMAND_ERROR"
	}

	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(exit, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
