// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fifo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ems/lib/testutil"
)

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")

	if err := Create(path, DefaultMode); err != nil {
		t.Fatalf("Create: %v", err)
	}
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if info.Mode().Type() != fs.ModeNamedPipe {
		t.Errorf("created %v, want a named pipe", info.Mode())
	}

	// A second Create on the same FIFO is accepted.
	if err := Create(path, DefaultMode); err != nil {
		t.Errorf("Create on existing FIFO: %v", err)
	}
}

func TestCreateRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	err := Create(path, DefaultMode)
	if !errors.Is(err, ErrNotFIFO) {
		t.Errorf("Create over regular file = %v, want ErrNotFIFO", err)
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	if err := Create(path, DefaultMode); err != nil {
		t.Fatal(err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Lstat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("FIFO still present after Remove: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Errorf("Remove of missing FIFO: %v", err)
	}
}

func TestReadWriteEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	if err := Create(path, DefaultMode); err != nil {
		t.Fatal(err)
	}

	received := make(chan []byte, 1)
	go func() {
		reader, err := OpenRead(path)
		if err != nil {
			received <- nil
			return
		}
		defer reader.Close()
		data, _ := io.ReadAll(reader)
		received <- data
	}()

	writer, err := OpenWrite(path)
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := writer.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	writer.Close()

	data := testutil.RequireReceive(t, received, 5*time.Second, "reader result")
	if string(data) != "hello" {
		t.Errorf("read %q, want %q", data, "hello")
	}
}

func TestOpenReadWriteDoesNotBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	if err := Create(path, DefaultMode); err != nil {
		t.Fatal(err)
	}

	file, err := OpenReadWrite(path)
	if err != nil {
		t.Fatalf("OpenReadWrite: %v", err)
	}

	// Close from another goroutine releases a blocked Read.
	readErr := make(chan error, 1)
	go func() {
		var buffer [1]byte
		_, err := file.Read(buffer[:])
		readErr <- err
	}()
	testutil.RequireBlocked(t, readErr, 50*time.Millisecond, "read with no writer")
	file.Close()

	err = testutil.RequireReceive(t, readErr, 5*time.Second, "read after close")
	if !IsExpectedCloseError(err) {
		t.Errorf("read after close = %v, want an expected close error", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		interrupted bool
		closed      bool
	}{
		{"nil", nil, false, false},
		{"eof", io.EOF, false, true},
		{"closed", os.ErrClosed, false, true},
		{"epipe", &os.PathError{Op: "write", Path: "p", Err: unix.EPIPE}, false, true},
		{"eintr", fmt.Errorf("reading: %w", unix.EINTR), true, false},
		{"other", io.ErrUnexpectedEOF, false, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsInterrupted(test.err); got != test.interrupted {
				t.Errorf("IsInterrupted = %v, want %v", got, test.interrupted)
			}
			if got := IsExpectedCloseError(test.err); got != test.closed {
				t.Errorf("IsExpectedCloseError = %v, want %v", got, test.closed)
			}
		})
	}
}

func TestWakeReleasesBlockedOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	if err := Create(path, DefaultMode); err != nil {
		t.Fatal(err)
	}

	opened := make(chan error, 1)
	go func() {
		file, err := OpenRead(path)
		if err == nil {
			file.Close()
		}
		opened <- err
	}()
	testutil.RequireBlocked(t, opened, 50*time.Millisecond, "OpenRead with no writer")

	// The reader may not have reached open(2) yet; wake until it has.
	for {
		if err := Wake(path); err != nil {
			t.Fatalf("Wake: %v", err)
		}
		select {
		case err := <-opened:
			if err != nil {
				t.Fatalf("OpenRead after Wake: %v", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWakeMissingPath(t *testing.T) {
	if err := Wake(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("Wake on missing path: %v", err)
	}
}

func TestOpenWriteNoWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")
	if err := Create(path, DefaultMode); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenWriteNoWait(path); !errors.Is(err, ErrNoReader) {
		t.Fatalf("OpenWriteNoWait with no reader = %v, want ErrNoReader", err)
	}

	holder, err := OpenReadWrite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Close()

	writer, err := OpenWriteNoWait(path)
	if err != nil {
		t.Fatalf("OpenWriteNoWait with a reader: %v", err)
	}
	defer writer.Close()
	if _, err := writer.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buffer := make([]byte, 1)
	if _, err := io.ReadFull(holder, buffer); err != nil || buffer[0] != 'x' {
		t.Errorf("read back %q, %v", buffer, err)
	}
}
