// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait or read the wall clock take a Clock instead of
// calling the time package directly. The server passes Real(); tests
// pass Fake() and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	store, _ := eventstore.New(eventstore.Options{AccessDelay: time.Millisecond, Clock: fake})
//	go store.Create(1, 2, 2)
//	fake.WaitForSleepers(1)
//	fake.Advance(time.Millisecond)
//
// WaitForSleepers closes the race between a goroutine registering a
// wait and the test advancing past it.
package clock
