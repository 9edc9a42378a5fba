// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventstore

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/ems/lib/clock"
	"github.com/bureau-foundation/ems/lib/testutil"
)

func newStore(t *testing.T, options Options) *Store {
	t.Helper()
	store, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNewRejectsNegativeOptions(t *testing.T) {
	if _, err := New(Options{AccessDelay: -time.Millisecond}); err == nil {
		t.Error("New with negative delay succeeded")
	}
	if _, err := New(Options{MaxReservationSize: -1}); err == nil {
		t.Error("New with negative reservation limit succeeded")
	}
}

func TestCreate(t *testing.T) {
	store := newStore(t, Options{})

	if err := store.Create(1, 3, 4); err != nil {
		t.Fatalf("Create(1): %v", err)
	}
	if err := store.Create(1, 2, 2); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("duplicate Create: got %v, want ErrDuplicateEvent", err)
	}

	grid, err := store.Show(1)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if grid.Rows != 3 || grid.Cols != 4 {
		t.Errorf("dimensions = %dx%d, want 3x4", grid.Rows, grid.Cols)
	}
	for i, seat := range grid.Seats {
		if seat != 0 {
			t.Errorf("seat %d = %d on a fresh event", i, seat)
		}
	}
}

func TestCreateInvalidDimensions(t *testing.T) {
	store := newStore(t, Options{})

	tests := []struct {
		name       string
		rows, cols uint64
	}{
		{"zero rows", 0, 5},
		{"zero cols", 5, 0},
		{"too large", MaxCells, 2},
		{"overflow", 1 << 40, 1 << 40},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := store.Create(7, test.rows, test.cols); !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("Create(%d, %d): got %v, want ErrInvalidDimensions", test.rows, test.cols, err)
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after failed creates", store.Len())
	}
}

func TestReserve(t *testing.T) {
	store := newStore(t, Options{})
	if err := store.Create(1, 3, 3); err != nil {
		t.Fatal(err)
	}

	if err := store.Reserve(1, []Seat{{0, 0}, {0, 1}}); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if err := store.Reserve(1, []Seat{{2, 2}}); err != nil {
		t.Fatalf("second Reserve: %v", err)
	}

	grid, err := store.Show(1)
	if err != nil {
		t.Fatal(err)
	}
	expected := []uint32{
		1, 1, 0,
		0, 0, 0,
		0, 0, 2,
	}
	if !slices.Equal(grid.Seats, expected) {
		t.Errorf("seats = %v, want %v", grid.Seats, expected)
	}
	if grid.At(2, 2) != 2 {
		t.Errorf("At(2,2) = %d, want 2", grid.At(2, 2))
	}
}

func TestReserveAllOrNothing(t *testing.T) {
	store := newStore(t, Options{})
	if err := store.Create(1, 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := store.Reserve(1, []Seat{{1, 1}}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		seats []Seat
		want  error
	}{
		{"taken seat last", []Seat{{0, 0}, {0, 1}, {1, 1}}, ErrSeatAlreadyReserved},
		{"out of range last", []Seat{{0, 0}, {2, 0}}, ErrSeatOutOfRange},
		{"column out of range", []Seat{{0, 2}}, ErrSeatOutOfRange},
		{"same seat twice", []Seat{{0, 0}, {0, 0}}, ErrSeatAlreadyReserved},
		{"empty", nil, ErrInvalidReservation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := store.Reserve(1, test.seats); !errors.Is(err, test.want) {
				t.Fatalf("Reserve: got %v, want %v", err, test.want)
			}
			grid, err := store.Show(1)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(grid.Seats, []uint32{0, 0, 0, 1}) {
				t.Errorf("failed Reserve modified seats: %v", grid.Seats)
			}
		})
	}

	// A failed batch does not consume a reservation number.
	if err := store.Reserve(1, []Seat{{0, 0}}); err != nil {
		t.Fatal(err)
	}
	grid, _ := store.Show(1)
	if grid.At(0, 0) != 2 {
		t.Errorf("next reservation id = %d, want 2", grid.At(0, 0))
	}
}

func TestReserveErrors(t *testing.T) {
	store := newStore(t, Options{MaxReservationSize: 2})
	if err := store.Create(1, 4, 4); err != nil {
		t.Fatal(err)
	}

	if err := store.Reserve(9, []Seat{{0, 0}}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown event: got %v", err)
	}
	if err := store.Reserve(1, []Seat{{0, 0}, {0, 1}, {0, 2}}); !errors.Is(err, ErrTooManySeats) {
		t.Errorf("oversized batch: got %v", err)
	}
	if err := store.Reserve(1, []Seat{{0, 0}, {0, 1}}); err != nil {
		t.Errorf("batch at the limit: %v", err)
	}
}

func TestConcurrentReserveSameSeat(t *testing.T) {
	store := newStore(t, Options{})
	if err := store.Create(1, 10, 10); err != nil {
		t.Fatal(err)
	}

	const contenders = 32
	var (
		waitGroup sync.WaitGroup
		start     = make(chan struct{})
		results   = make(chan error, contenders)
	)
	for range contenders {
		waitGroup.Go(func() {
			<-start
			results <- store.Reserve(1, []Seat{{5, 5}, {5, 6}})
		})
	}
	close(start)
	waitGroup.Wait()
	close(results)

	winners := 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrSeatAlreadyReserved):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("%d winners, want exactly 1", winners)
	}

	grid, _ := store.Show(1)
	if grid.At(5, 5) != 1 || grid.At(5, 6) != 1 {
		t.Errorf("seats = %d,%d, want 1,1", grid.At(5, 5), grid.At(5, 6))
	}
}

func TestShowUnknown(t *testing.T) {
	store := newStore(t, Options{})
	if _, err := store.Show(3); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Show(3): got %v, want ErrUnknownEvent", err)
	}
}

func TestShowReturnsCopy(t *testing.T) {
	store := newStore(t, Options{})
	if err := store.Create(1, 1, 2); err != nil {
		t.Fatal(err)
	}
	grid, _ := store.Show(1)
	grid.Seats[0] = 99

	again, _ := store.Show(1)
	if again.At(0, 0) != 0 {
		t.Errorf("mutating a Show result changed the store: %d", again.At(0, 0))
	}
}

func TestListInsertionOrder(t *testing.T) {
	store := newStore(t, Options{})
	ids := []uint32{42, 7, 19, 1}
	for _, id := range ids {
		if err := store.Create(id, 1, 1); err != nil {
			t.Fatal(err)
		}
	}
	listed, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(listed, ids) {
		t.Errorf("List = %v, want %v", listed, ids)
	}

	empty := newStore(t, Options{})
	listed, err = empty.List()
	if err != nil || len(listed) != 0 {
		t.Errorf("empty List = %v, %v", listed, err)
	}
}

func TestConcurrentCreate(t *testing.T) {
	store := newStore(t, Options{})
	var waitGroup sync.WaitGroup
	for i := range 50 {
		waitGroup.Go(func() {
			if err := store.Create(uint32(i), 2, 2); err != nil {
				t.Errorf("Create(%d): %v", i, err)
			}
		})
	}
	waitGroup.Wait()

	listed, _ := store.List()
	if len(listed) != 50 {
		t.Fatalf("List has %d ids, want 50", len(listed))
	}
	slices.Sort(listed)
	for i, id := range listed {
		if id != uint32(i) {
			t.Fatalf("List sorted[%d] = %d", i, id)
		}
	}
}

func TestVisit(t *testing.T) {
	store := newStore(t, Options{})
	for _, id := range []uint32{3, 1} {
		if err := store.Create(id, 1, 2); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Reserve(1, []Seat{{0, 1}}); err != nil {
		t.Fatal(err)
	}

	var visited []string
	err := store.Visit(func(grid Grid) error {
		visited = append(visited, fmt.Sprintf("%d:%v", grid.ID, grid.Seats))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"3:[0 0]", "1:[0 1]"}
	if !slices.Equal(visited, expected) {
		t.Errorf("visited %v, want %v", visited, expected)
	}

	stop := errors.New("stop")
	calls := 0
	err = store.Visit(func(Grid) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Visit with failing fn: err=%v calls=%d", err, calls)
	}
}

// Visiting one event must block only operations on that event.
func TestVisitLocksOneEvent(t *testing.T) {
	store := newStore(t, Options{})
	if err := store.Create(1, 2, 2); err != nil {
		t.Fatal(err)
	}

	inside := make(chan struct{})
	release := make(chan struct{})
	visitDone := make(chan error, 1)
	go func() {
		visitDone <- store.Visit(func(Grid) error {
			close(inside)
			<-release
			return nil
		})
	}()
	testutil.RequireClosed(t, inside, 5*time.Second, "waiting for Visit callback")

	otherDone := make(chan error, 1)
	go func() {
		if err := store.Create(2, 2, 2); err != nil {
			otherDone <- err
			return
		}
		otherDone <- store.Reserve(2, []Seat{{0, 0}})
	}()
	if err := testutil.RequireReceive(t, otherDone, 5*time.Second, "Create/Reserve on another event"); err != nil {
		t.Fatalf("operation on event 2: %v", err)
	}

	showDone := make(chan error, 1)
	go func() {
		_, err := store.Show(1)
		showDone <- err
	}()
	testutil.RequireBlocked(t, showDone, 50*time.Millisecond, "Show of the visited event")

	close(release)
	if err := testutil.RequireReceive(t, visitDone, 5*time.Second, "Visit"); err != nil {
		t.Fatal(err)
	}
	if err := testutil.RequireReceive(t, showDone, 5*time.Second, "Show after Visit"); err != nil {
		t.Fatal(err)
	}
}

func TestAccessDelay(t *testing.T) {
	fake := clock.Fake(time.Unix(1_700_000_000, 0))
	store := newStore(t, Options{AccessDelay: 10 * time.Millisecond, Clock: fake})

	done := make(chan error, 1)
	go func() { done <- store.Create(1, 1, 1) }()

	fake.WaitForSleepers(1)
	testutil.RequireBlocked(t, done, 20*time.Millisecond, "Create before the delay elapsed")

	fake.Advance(10 * time.Millisecond)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Create after Advance"); err != nil {
		t.Fatal(err)
	}
}

func TestClose(t *testing.T) {
	store, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Create(1, 1, 1); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if err := store.Create(2, 1, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Create after Close: %v", err)
	}
	if err := store.Reserve(1, []Seat{{0, 0}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Reserve after Close: %v", err)
	}
	if _, err := store.Show(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Show after Close: %v", err)
	}
	if _, err := store.List(); !errors.Is(err, ErrClosed) {
		t.Errorf("List after Close: %v", err)
	}
	if err := store.Visit(func(Grid) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Visit after Close: %v", err)
	}
}
