// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the ems
// binaries.
//
// Values are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/ems/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without injection they read "unknown" / "0.1.0-dev".
package version
