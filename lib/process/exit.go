// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitCoder is implemented by errors that carry a specific process
// exit status.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. The exit status is
// taken from err when it implements ExitCoder, otherwise 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitCode(err))
}

// ExitCode returns the status Fatal would exit with for err: 0 for
// nil, the ExitCoder's code when err wraps one, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
