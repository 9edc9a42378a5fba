// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fifo wraps the named-pipe operations the server and client
// share: creating a FIFO, opening either end, and classifying the
// errors that pipe I/O produces.
//
// Opening a FIFO blocks until the other end is opened, except for
// OpenReadWrite, which holds both ends itself. The registration pipe
// is opened that way so its reader never observes EOF while no client
// is connected.
//
// Files returned by the Open functions are registered with the Go
// runtime poller, so Close from another goroutine unblocks a pending
// Read or Write with os.ErrClosed. The server relies on this for
// shutdown.
package fifo
