// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventstore holds every event and its seat grid.
//
// Locking is per event: each event carries its own mutex, and every
// read or write of its seats happens under it. Operations on
// different events never contend on a common lock except the brief
// index lookup. The index (the id → event map plus the insertion-order
// id list) has its own RWMutex, which is never held while an event
// mutex is being acquired.
//
// A seat holds 0 while free. A successful Reserve stamps every seat in
// the batch with that event's next reservation number, starting at 1.
// Reserve is all-or-nothing: the batch is checked completely before
// any seat is written.
//
// Coordinates are zero-based; Row indexes rows (the x coordinate on
// the wire) and Col indexes columns (y).
package eventstore
