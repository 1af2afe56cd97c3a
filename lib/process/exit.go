// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

// Exit statuses chosen by [ExitCode].
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// UsageError marks an error caused by how the command was invoked
// (bad flags, missing arguments) rather than by the work it attempted.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// Usage wraps err as a [UsageError]. A nil err stays nil.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

// Usagef formats a [UsageError].
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode returns the exit status a command should end with after
// run returned err.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	}
	return ExitFailure
}

// Report writes "error: err" to w unless err needs no report (nil or a
// --help request), and returns the exit status for err.
func Report(w io.Writer, err error) int {
	code := ExitCode(err)
	if code != ExitOK {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return code
}

// Fatal reports err to stderr and exits with the status [ExitCode]
// picks. Use it in main() for errors from run() where the structured
// logger may not be initialized.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}
