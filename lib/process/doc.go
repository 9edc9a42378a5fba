// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers shared by the ems
// binaries. Fatal is the one place outside snapshot dumps and --help
// text where a binary writes unstructured output, because the logger
// may not exist yet when run() fails.
package process
