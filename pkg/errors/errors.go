// Package errors provides error wrapping utilities and the failure taxonomy
// shared by every stage of a reconciliation pass.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Failure classes. Stages wrap one of these so the command layer can map a
// failed pass to a distinguishing exit code with errors.Is.
var (
	// ErrUsage indicates missing or invalid arguments
	ErrUsage = stderrors.New("usage error")

	// ErrNotFound indicates no volume with the requested name is present
	ErrNotFound = stderrors.New("volume not found")

	// ErrAmbiguous indicates more than one volume reports the requested name
	ErrAmbiguous = stderrors.New("volume name is ambiguous")

	// ErrNotConfigured indicates the mount table has no entry owned by the volume
	ErrNotConfigured = stderrors.New("volume not configured in mount table")

	// ErrConflict indicates the mount table claims the volume more than once
	ErrConflict = stderrors.New("conflicting mount table entries")

	// ErrBusy indicates another pass holds the mount table lock
	ErrBusy = stderrors.New("mount table is locked by another process")

	// ErrIO indicates a permission or storage failure reading or writing a file
	ErrIO = stderrors.New("i/o error")
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitUsage         = 1
	ExitNotFound      = 2
	ExitAmbiguous     = 3
	ExitNotConfigured = 4
	ExitConflict      = 5
	ExitBusy          = 6
	ExitIO            = 7
)

var exitCodes = []struct {
	err  error
	code int
}{
	{ErrUsage, ExitUsage},
	{ErrNotFound, ExitNotFound},
	{ErrAmbiguous, ExitAmbiguous},
	{ErrNotConfigured, ExitNotConfigured},
	{ErrConflict, ExitConflict},
	{ErrBusy, ExitBusy},
	{ErrIO, ExitIO},
}

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IO classifies err as an I/O failure of op on path. The result matches both
// ErrIO and err under errors.Is. If err is nil, it returns nil.
func IO(err error, op, path string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

// ExitCode maps err to the process exit code of its failure class.
// Unclassified errors are reported as I/O failures.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, ec := range exitCodes {
		if stderrors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ExitIO
}
