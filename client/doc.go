// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client talks to ems-server over named pipes.
//
// Setup creates the session's two FIFOs, registers them on the
// server's registration FIFO, and waits for the session id. Each
// method then sends one command and reads its response. A Client is
// not safe for concurrent use; open one session per goroutine.
package client
