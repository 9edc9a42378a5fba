// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec wraps fxamacker/cbor with the encoding options used by
// the control socket. Callers import this package rather than the CBOR
// library so every encoder in the process shares one configuration:
// Core Deterministic Encoding on the way out, string-keyed maps for
// any-typed targets on the way in.
//
// The session FIFOs do not use this package; their wire format is the
// fixed binary layout in package protocol.
package codec
