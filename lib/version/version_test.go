// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })

	GitCommit = "abc1234"
	GitDirty = "false"
	if info := Info(); !strings.Contains(info, "(abc1234,") {
		t.Errorf("Info() = %q, want clean commit marker", info)
	}

	GitDirty = "true"
	if info := Info(); !strings.Contains(info, "abc1234-dirty") {
		t.Errorf("Info() = %q, want -dirty suffix", info)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() = %q, want prefix %q", full, Info())
	}
	if !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q, missing platform line", full)
	}
}
