// Package coreerr defines the error taxonomy shared by every layer that talks
// to the reasoning engine.
//
// Transport failures (start, communication, termination, closed session) are
// fatal for the session. Rejections reported by the engine itself (unknown
// command, bad arguments, engine error) are recoverable: the session stays
// usable and the message is meant to be shown to the user verbatim.
// Snapshot parse errors are contract violations by the engine.
package coreerr

import (
	"errors"
	"fmt"
)

// Code categorizes core errors.
type Code string

const (
	// CodeProcessStart indicates the engine executable is missing or failed to launch.
	CodeProcessStart Code = "PROCESS_START_FAILURE"

	// CodeCommunication indicates an I/O error while the process is still alive.
	CodeCommunication Code = "COMMUNICATION_FAILURE"

	// CodeProcessTerminated indicates an I/O error correlated with process exit.
	CodeProcessTerminated Code = "PROCESS_TERMINATED"

	// CodeUnknownCommand indicates the engine did not recognise the command.
	CodeUnknownCommand Code = "UNKNOWN_COMMAND"

	// CodeBadArguments indicates the engine rejected the number of arguments.
	CodeBadArguments Code = "BAD_ARGUMENTS"

	// CodeEngine is any other error reported by the engine.
	CodeEngine Code = "ENGINE_ERROR"

	// CodeSnapshotParse indicates the engine returned structurally invalid graph XML.
	CodeSnapshotParse Code = "SNAPSHOT_PARSE_ERROR"

	// CodeSessionClosed indicates a call made after shutdown or termination.
	CodeSessionClosed Code = "SESSION_CLOSED"

	// CodeInvalidArgument indicates a client-side precondition failed before
	// anything was sent to the engine.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeNoRewritesAttached indicates an apply was requested while no
	// rewrite candidates are attached to the graph.
	CodeNoRewritesAttached Code = "NO_REWRITES_ATTACHED"
)

// Error is the single error type raised by the core.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description. For engine rejections this is
	// the engine's own text with the error marker removed.
	Message string

	// Command is the command name extracted from UNKNOWN_COMMAND and
	// BAD_ARGUMENTS responses, or the command being executed when known.
	Command string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Command != "" {
		return fmt.Sprintf("%s: %s (command=%s)", e.Code, msg, e.Command)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error leaves the session unusable.
func (e *Error) Fatal() bool {
	switch e.Code {
	case CodeProcessStart, CodeCommunication, CodeProcessTerminated, CodeSessionClosed:
		return true
	}
	return false
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code wrapping a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// UnknownCommand creates an UNKNOWN_COMMAND error for the named command.
func UnknownCommand(message, command string) *Error {
	return &Error{Code: CodeUnknownCommand, Message: message, Command: command}
}

// BadArguments creates a BAD_ARGUMENTS error for the named command.
func BadArguments(message, command string) *Error {
	return &Error{Code: CodeBadArguments, Message: message, Command: command}
}

// Engine creates an ENGINE_ERROR carrying the engine's raw message.
func Engine(message string) *Error {
	return &Error{Code: CodeEngine, Message: message}
}

// SnapshotParse creates a SNAPSHOT_PARSE_ERROR.
func SnapshotParse(format string, args ...any) *Error {
	return &Error{Code: CodeSnapshotParse, Message: fmt.Sprintf(format, args...)}
}

// SessionClosed creates a SESSION_CLOSED error, optionally carrying the
// failure that closed the session.
func SessionClosed(cause error) *Error {
	return &Error{Code: CodeSessionClosed, Message: "session is closed", Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode returns true if err's chain contains an *Error with the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsProcessTerminated returns true if the error is a PROCESS_TERMINATED error.
func IsProcessTerminated(err error) bool {
	return IsCode(err, CodeProcessTerminated)
}

// IsSessionClosed returns true if the error is a SESSION_CLOSED error.
func IsSessionClosed(err error) bool {
	return IsCode(err, CodeSessionClosed)
}

// IsEngineError returns true if the engine explicitly rejected the request,
// whichever of the three rejection codes it was classified as.
func IsEngineError(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownCommand, CodeBadArguments, CodeEngine:
		return true
	}
	return false
}

// IsEngineMessage returns true if err is an ENGINE_ERROR whose message is
// exactly msg.
func IsEngineMessage(err error, msg string) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == CodeEngine && ce.Message == msg
}

// IsFatal returns true if err leaves the session unusable.
func IsFatal(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Fatal()
	}
	return false
}
