// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handoff

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close, and by Pop once a closed
// queue has been drained.
var ErrClosed = errors.New("handoff queue closed")

// Queue is a bounded FIFO safe for concurrent producers and consumers.
type Queue[T any] struct {
	mutex    sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	// slots has capacity+1 entries. head is the next slot to pop,
	// tail the next slot to fill.
	slots []T
	head  int
	tail  int

	closed bool
}

// New returns an empty queue holding up to capacity records. Panics
// if capacity < 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("handoff: queue capacity must be at least 1")
	}
	queue := &Queue[T]{slots: make([]T, capacity+1)}
	queue.notFull = sync.NewCond(&queue.mutex)
	queue.notEmpty = sync.NewCond(&queue.mutex)
	return queue
}

// Push appends record, waiting while the queue is full.
func (q *Queue[T]) Push(record T) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.fullLocked() && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.slots[q.tail] = record
	q.tail = q.next(q.tail)
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the oldest record, waiting while the queue
// is empty. After Close, Pop keeps returning queued records until none
// remain and then returns ErrClosed.
func (q *Queue[T]) Pop() (T, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.emptyLocked() && !q.closed {
		q.notEmpty.Wait()
	}
	var zero T
	if q.emptyLocked() {
		return zero, ErrClosed
	}

	record := q.slots[q.head]
	q.slots[q.head] = zero
	q.head = q.next(q.head)
	q.notFull.Signal()
	return record, nil
}

// Close wakes every blocked Push and Pop. Further pushes fail; pops
// drain whatever is left.
func (q *Queue[T]) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the number of queued records.
func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return (q.tail - q.head + len(q.slots)) % len(q.slots)
}

// Capacity returns the maximum number of queued records.
func (q *Queue[T]) Capacity() int {
	return len(q.slots) - 1
}

func (q *Queue[T]) next(index int) int {
	return (index + 1) % len(q.slots)
}

func (q *Queue[T]) emptyLocked() bool {
	return q.head == q.tail
}

func (q *Queue[T]) fullLocked() bool {
	return q.next(q.tail) == q.head
}
