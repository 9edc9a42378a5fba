// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the binary wire format spoken over the ems
// named pipes.
//
// Every message has a fixed-size part, optionally followed by a
// trailing array whose length is carried in the fixed part. There is
// no other framing. Fields are packed with no padding, integers are
// little-endian, and sizes and coordinates are 8-byte unsigned values.
//
// Registration channel (client → server, once per session):
//
//	[1 byte opcode=SETUP] [40 bytes request pipe] [40 bytes response pipe]
//
// Session request channel (client → server), every command:
//
//	[1 byte opcode] [4 bytes session id] [opcode-specific body]
//
// Session response channel (server → client): a setup response
// carrying the session id, then one response per CREATE, RESERVE,
// SHOW, and LIST command. QUIT has no response.
//
// Read functions return errors wrapping io.EOF or io.ErrUnexpectedEOF
// from the underlying reader untouched, so callers can tell a peer
// that closed between messages from one that closed mid-message.
package protocol
