// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"runtime"
	"testing"
)

// WaitForPath spins until path exists, yielding the processor between
// checks. Fails the test if the test context ends first.
func WaitForPath(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("%s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}
