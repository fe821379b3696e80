// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/glalby/glalby/lib/sdkerr"
)

// Exit codes. Invalid input and remote failures are told apart so
// scripts can decide whether a retry makes sense.
const (
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitRemote          = 3
)

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have written its own
// output already.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCodeFor maps err to a process exit code.
func ExitCodeFor(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case sdkerr.IsInvalidArgument(err):
		return ExitInvalidArgument
	case sdkerr.IsRemoteAPI(err):
		return ExitRemote
	}
	return ExitFailure
}
