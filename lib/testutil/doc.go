// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [PipeDir] creates a short-named temporary directory in /tmp for
// FIFOs. Session pipe names travel in 40-byte protocol fields, and
// t.TempDir paths routinely exceed that, so tests that register
// sessions must place their pipes here.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern so individual tests never call
// time.After directly. A hung worker or a lost wakeup then fails the
// test with a message instead of stalling the whole run.
//
// [UniqueID] returns monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure.
package testutil
