// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads ems-server configuration.
//
// Configuration comes from a single file named by the --config flag or
// the EMS_CONFIG environment variable. There is no search path. YAML is
// the native format; files ending in .json or .jsonc are accepted too
// (comments and trailing commas are stripped before decoding, and the
// resulting JSON is valid YAML).
//
// Every field has a default, so a server can run with no file at all.
// Command-line flags are applied by the binary after loading and win
// over file values.
package config
