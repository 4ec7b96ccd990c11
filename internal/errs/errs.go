// Package errs defines the error type shared by all strata commands.
// Every fatal condition carries a machine-readable kind and the exit
// value the CLI should terminate with.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for exit-code mapping and display.
type Kind int

const (
	// KindUnknown covers wrapped errors from outside strata.
	KindUnknown Kind = iota
	// KindParse is a malformed plan file (includes file and line).
	KindParse
	// KindValidation is a violated naming or uniqueness rule.
	KindValidation
	// KindResolution is a symbolic reference that matched nothing.
	KindResolution
	// KindConfig is missing or malformed configuration.
	KindConfig
	// KindIO is a failed file operation.
	KindIO
	// KindEngine is a database engine failure.
	KindEngine
	// KindUser is an operation cancelled or misused by the user.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindConfig:
		return "config"
	case KindIO:
		return "io"
	case KindEngine:
		return "engine"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Error is the single error type used for fatal strata conditions.
type Error struct {
	Kind Kind
	// Exit is the process exit value when this error terminates a command.
	Exit int
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

func (e *Error) Unwrap() error { return errors.Unwrap(e.err) }

// Newf formats an error of the given kind. A %w verb wraps the cause
// so errors.Is/As see through it.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Exit: 2, err: fmt.Errorf(format, args...)}
}

// Parsef reports a malformed plan file.
func Parsef(format string, args ...any) *Error { return Newf(KindParse, format, args...) }

// Validationf reports a violated naming or uniqueness rule.
func Validationf(format string, args ...any) *Error { return Newf(KindValidation, format, args...) }

// Resolutionf reports a symbolic reference that matched nothing.
func Resolutionf(format string, args ...any) *Error { return Newf(KindResolution, format, args...) }

// Configf reports missing or malformed configuration.
func Configf(format string, args ...any) *Error { return Newf(KindConfig, format, args...) }

// IOf reports a failed file operation.
func IOf(format string, args ...any) *Error { return Newf(KindIO, format, args...) }

// Enginef reports a database engine failure.
func Enginef(format string, args ...any) *Error { return Newf(KindEngine, format, args...) }

// Userf reports a cancelled or misused operation. Exit value 1, not 2:
// "nothing to do" style conditions are distinct from genuine failures.
func Userf(format string, args ...any) *Error {
	e := Newf(KindUser, format, args...)
	e.Exit = 1
	return e
}

// ExitCode returns the exit value an error should terminate with.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Exit
	}
	return 2
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
