// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the server's local administration
// socket: a CBOR request-response protocol on a Unix socket.
//
// Each connection carries exactly one exchange. The client writes one
// CBOR map containing an "action" field plus any action-specific
// fields; the server replies with a [Response] envelope and closes the
// connection. CBOR values are self-delimiting, so there is no framing
// layer.
//
// [Server] dispatches by action name to handlers registered with
// Handle. [Client] opens a fresh connection for every Call.
package control
