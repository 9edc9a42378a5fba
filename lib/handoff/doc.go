// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handoff implements the bounded producer/consumer queue that
// sits between the server's accept loop and its worker pool.
//
// Queue is a classic monitor: one mutex and two condition variables
// (not-full, not-empty) around a circular buffer. The buffer has one
// more slot than the usable capacity so that head == tail means empty
// and tail+1 == head means full, with no separate count.
//
// Push blocks while the queue is full and Pop blocks while it is
// empty. Records come out in exactly the order they went in, each to
// exactly one caller of Pop.
package handoff
