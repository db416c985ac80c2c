// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package exitcode carries the process exit code (0 success; 2
// configuration error; 3 one or more plans failed or skipped; 4 usage
// error) through cobra's plain error-returning
// RunE, since cobra itself has no first-class way to propagate an exit code
// other than "zero or nonzero".
package exitcode

import (
	"errors"

	"github.com/habitat-sh/hab-auto-build/pkg/act/cli"
)

const (
	OK          = 0
	ConfigError = 2
	Incomplete  = 3
	UsageError  = 4
)

// Error wraps an underlying error with the process exit code main() should
// use when surfacing it.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with code, or returns nil if err is nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// CodeOf resolves the exit code for err: 0 if err is nil, the code carried
// by an *Error, 4 for argument-parsing/validation failures, or 1 for any
// other error.
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ue *cli.UsageError
	if errors.As(err, &ue) {
		return UsageError
	}
	return 1
}
