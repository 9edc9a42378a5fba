// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/ems/lib/clock"
)

var (
	ErrDuplicateEvent      = errors.New("event already exists")
	ErrInvalidDimensions   = errors.New("invalid event dimensions")
	ErrUnknownEvent        = errors.New("event not found")
	ErrSeatOutOfRange      = errors.New("seat out of range")
	ErrSeatAlreadyReserved = errors.New("seat already reserved")
	ErrTooManySeats        = errors.New("too many seats in one reservation")
	ErrInvalidReservation  = errors.New("reservation has no seats")
	ErrClosed              = errors.New("event store closed")
)

// MaxCells bounds rows*cols for a single event. A SHOW of the largest
// grid is 64 MiB on the wire.
const MaxCells = 1 << 24

// Options configures a Store.
type Options struct {
	// AccessDelay is slept on every operation to simulate slow state
	// access. Zero disables it.
	AccessDelay time.Duration

	// MaxReservationSize caps the seats in one Reserve call. Zero
	// means no cap.
	MaxReservationSize int

	// Clock is used for AccessDelay. Defaults to clock.Real().
	Clock clock.Clock
}

// Seat is a zero-based coordinate in an event's grid.
type Seat struct {
	Row uint64
	Col uint64
}

// Grid is a view of one event's seats in row-major order.
type Grid struct {
	ID    uint32
	Rows  uint64
	Cols  uint64
	Seats []uint32
}

// At returns the seat value at row, col. The caller must pass
// in-range coordinates.
func (g Grid) At(row, col uint64) uint32 {
	return g.Seats[row*g.Cols+col]
}

type event struct {
	id   uint32
	rows uint64
	cols uint64

	mutex        sync.Mutex
	seats        []uint32
	reservations uint32
}

func (e *event) gridLocked() Grid {
	return Grid{ID: e.id, Rows: e.rows, Cols: e.cols, Seats: e.seats}
}

// Store is safe for concurrent use.
type Store struct {
	clock              clock.Clock
	accessDelay        time.Duration
	maxReservationSize int

	indexMutex sync.RWMutex
	events     map[uint32]*event
	order      []uint32

	closed atomic.Bool
}

// New returns an empty store.
func New(options Options) (*Store, error) {
	if options.AccessDelay < 0 {
		return nil, fmt.Errorf("access delay must not be negative, got %v", options.AccessDelay)
	}
	if options.MaxReservationSize < 0 {
		return nil, fmt.Errorf("max reservation size must not be negative, got %d", options.MaxReservationSize)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	return &Store{
		clock:              options.Clock,
		accessDelay:        options.AccessDelay,
		maxReservationSize: options.MaxReservationSize,
		events:             make(map[uint32]*event),
	}, nil
}

// Close drops every event. Operations after Close return ErrClosed.
func (s *Store) Close() {
	s.closed.Store(true)
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()
	s.events = make(map[uint32]*event)
	s.order = nil
}

// Create adds an event with a rows×cols grid of free seats.
func (s *Store) Create(id uint32, rows, cols uint64) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if rows == 0 || cols == 0 || cols > MaxCells/rows {
		return fmt.Errorf("event %d: %dx%d: %w", id, rows, cols, ErrInvalidDimensions)
	}

	created := &event{
		id:    id,
		rows:  rows,
		cols:  cols,
		seats: make([]uint32, rows*cols),
	}

	s.pause()

	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	if _, exists := s.events[id]; exists {
		return fmt.Errorf("event %d: %w", id, ErrDuplicateEvent)
	}
	s.events[id] = created
	s.order = append(s.order, id)
	return nil
}

// Reserve takes every seat in seats for one new reservation, or none
// of them.
func (s *Store) Reserve(id uint32, seats []Seat) error {
	if len(seats) == 0 {
		return fmt.Errorf("event %d: %w", id, ErrInvalidReservation)
	}
	if s.maxReservationSize > 0 && len(seats) > s.maxReservationSize {
		return fmt.Errorf("event %d: %d seats, limit %d: %w", id, len(seats), s.maxReservationSize, ErrTooManySeats)
	}

	target, err := s.lookup(id)
	if err != nil {
		return err
	}

	target.mutex.Lock()
	defer target.mutex.Unlock()
	s.pause()

	indices := make([]uint64, len(seats))
	requested := make(map[uint64]struct{}, len(seats))
	for i, seat := range seats {
		if seat.Row >= target.rows || seat.Col >= target.cols {
			return fmt.Errorf("event %d: seat (%d,%d) outside %dx%d: %w",
				id, seat.Row, seat.Col, target.rows, target.cols, ErrSeatOutOfRange)
		}
		index := seat.Row*target.cols + seat.Col
		if _, duplicate := requested[index]; duplicate || target.seats[index] != 0 {
			return fmt.Errorf("event %d: seat (%d,%d): %w", id, seat.Row, seat.Col, ErrSeatAlreadyReserved)
		}
		requested[index] = struct{}{}
		indices[i] = index
	}

	target.reservations++
	for _, index := range indices {
		target.seats[index] = target.reservations
	}
	return nil
}

// Show returns a copy of the event's grid taken under its lock.
func (s *Store) Show(id uint32) (Grid, error) {
	target, err := s.lookup(id)
	if err != nil {
		return Grid{}, err
	}

	target.mutex.Lock()
	defer target.mutex.Unlock()
	s.pause()

	grid := target.gridLocked()
	grid.Seats = append([]uint32(nil), target.seats...)
	return grid, nil
}

// List returns the ids of all events in creation order.
func (s *Store) List() ([]uint32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.pause()

	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()
	return append([]uint32{}, s.order...), nil
}

// Len returns the number of events.
func (s *Store) Len() int {
	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()
	return len(s.order)
}

// Visit calls fn for every event in creation order, holding that
// event's lock, and only that lock, for the duration of the call. The
// set of events is fixed when Visit starts; events created during the
// walk are not visited. The Grid passed to fn aliases the live seats
// and must not be retained or modified.
//
// Visit stops at the first error from fn and returns it.
func (s *Store) Visit(fn func(Grid) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.indexMutex.RLock()
	events := make([]*event, 0, len(s.order))
	for _, id := range s.order {
		events = append(events, s.events[id])
	}
	s.indexMutex.RUnlock()

	for _, current := range events {
		if err := visitLocked(current, fn); err != nil {
			return err
		}
	}
	return nil
}

func visitLocked(current *event, fn func(Grid) error) error {
	current.mutex.Lock()
	defer current.mutex.Unlock()
	return fn(current.gridLocked())
}

func (s *Store) lookup(id uint32) (*event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()
	found, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, ErrUnknownEvent)
	}
	return found, nil
}

func (s *Store) pause() {
	if s.accessDelay > 0 {
		s.clock.Sleep(s.accessDelay)
	}
}
