// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package server multiplexes client sessions arriving on one
// well-known registration FIFO onto a fixed pool of workers.
//
// The accept goroutine reads SETUP registrations from the registration
// FIFO and pushes them onto a bounded hand-off queue. Each worker pops
// a registration, opens the client's two session FIFOs, announces the
// session id, and runs the session's command loop to completion before
// taking the next registration. All workers share one
// [eventstore.Store]; the only locks taken while serving commands are
// the store's per-event locks.
//
// A snapshot dump of every event can be requested at any time with
// SIGUSR1 or through the control socket. The request only sets a flag;
// the dump runs on the goroutine that called Serve, locking one event
// at a time while workers keep serving.
//
// Serve returns nil after its context is cancelled and the server has
// shut down. It returns an error for conditions the process cannot
// survive: a failed read on the registration FIFO, a non-SETUP message
// on it, a session FIFO that cannot be opened, or a transport failure
// on a session FIFO.
package server
