// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fifo

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultMode is the permission mode for FIFOs the server and client
// create.
const DefaultMode = 0666

// ErrNoReader is returned by OpenWriteNoWait when nothing has the
// FIFO open for reading.
var ErrNoReader = errors.New("no reader on FIFO")

// ErrNotFIFO is returned by Create when path exists and is some other
// kind of file.
var ErrNotFIFO = errors.New("path exists and is not a FIFO")

// Create makes a FIFO at path. An existing FIFO at path is accepted
// and left in place.
func Create(path string, mode uint32) error {
	err := unix.Mkfifo(path, mode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	info, statErr := os.Lstat(path)
	if statErr != nil {
		return fmt.Errorf("mkfifo %s: %w", path, statErr)
	}
	if info.Mode().Type() != fs.ModeNamedPipe {
		return fmt.Errorf("mkfifo %s: %w", path, ErrNotFIFO)
	}
	return nil
}

// Remove unlinks the FIFO at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// OpenRead opens the read end of the FIFO at path, blocking until a
// writer opens the other end.
func OpenRead(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s for reading: %w", path, err)
	}
	return file, nil
}

// OpenWrite opens the write end of the FIFO at path, blocking until a
// reader opens the other end.
func OpenWrite(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s for writing: %w", path, err)
	}
	return file, nil
}

// OpenWriteNoWait opens the write end of the FIFO at path without
// waiting for a reader. Fails with ErrNoReader when there is none.
// Writes on the returned file block as usual.
func OpenWriteNoWait(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("opening %s for writing: %w", path, ErrNoReader)
		}
		return nil, fmt.Errorf("opening %s for writing: %w", path, err)
	}
	return file, nil
}

// OpenReadWrite opens the FIFO at path holding both ends. Never
// blocks; reads wait for data instead of returning EOF when every
// external writer has gone.
func OpenReadWrite(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return file, nil
}

// Wake releases any goroutine blocked opening either end of the FIFO
// at path. On Linux an O_RDWR open of a FIFO never blocks and counts
// as both a reader and a writer, so a pending open on the other side
// completes; the handle is closed again immediately. A missing path is
// not an error.
func Wake(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("waking %s: %w", path, err)
	}
	return file.Close()
}

// IsInterrupted reports whether err is an interrupted system call.
// The caller should retry the operation.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// IsExpectedCloseError reports whether err is the normal result of
// the peer or this process closing a pipe: EOF, a closed file, or a
// broken pipe.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}
	return errors.Is(err, unix.EPIPE)
}
