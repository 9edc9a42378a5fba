// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
)

// PipeDir creates a short temporary directory in /tmp for FIFOs and
// removes it when the test completes. Paths under it stay well inside
// the 40-byte pipe name field for names up to about twenty bytes.
func PipeDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "ems-*")
	if err != nil {
		t.Fatalf("creating pipe directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}
