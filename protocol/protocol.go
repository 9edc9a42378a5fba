// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcode tags every message on the registration and session pipes.
// The values are protocol constants.
type Opcode uint8

const (
	OpSetup   Opcode = 1
	OpQuit    Opcode = 2
	OpCreate  Opcode = 3
	OpReserve Opcode = 4
	OpShow    Opcode = 5
	OpList    Opcode = 6
)

// String returns the opcode name used in logs.
func (op Opcode) String() string {
	switch op {
	case OpSetup:
		return "setup"
	case OpQuit:
		return "quit"
	case OpCreate:
		return "create"
	case OpReserve:
		return "reserve"
	case OpShow:
		return "show"
	case OpList:
		return "list"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(op))
	}
}

// PipeNameSize is the fixed width of a pipe path in a registration
// record. Shorter names are NUL-padded, longer ones truncated.
const PipeNameSize = 40

// Sizes of the fixed parts of each message.
const (
	RegistrationSize    = 2 * PipeNameSize
	EnvelopeSize        = 1 + 4
	SetupResponseSize   = 4
	CreateRequestSize   = 4 + 8 + 8
	CreateResponseSize  = 4
	ReserveRequestSize  = 4 + 8
	ReserveResponseSize = 4
	ShowRequestSize     = 4
	ShowResponseSize    = 4 + 8 + 8
	ListResponseSize    = 4 + 8
)

// Return codes carried in responses.
const (
	ReturnOK     int32 = 0
	ReturnFailed int32 = 1
)

var byteOrder = binary.LittleEndian

// ErrPipeNameEmpty is returned when a registration record names an
// empty request or response pipe.
var ErrPipeNameEmpty = errors.New("registration pipe name is empty")

// ErrPipeNameTooLong is returned for a pipe path that does not fit in
// PipeNameSize bytes and would be truncated on the wire.
var ErrPipeNameTooLong = errors.New("registration pipe name too long")

// Registration announces a client's private session pipes. It is the
// only payload accepted on the registration channel.
type Registration struct {
	RequestPipe  string
	ResponsePipe string
}

// Validate reports whether both pipe names are present and fit the
// fixed record.
func (r Registration) Validate() error {
	for _, name := range []string{r.RequestPipe, r.ResponsePipe} {
		if name == "" {
			return ErrPipeNameEmpty
		}
		if len(name) > PipeNameSize {
			return fmt.Errorf("%q is %d bytes, limit %d: %w", name, len(name), PipeNameSize, ErrPipeNameTooLong)
		}
	}
	return nil
}

// Envelope is the prefix of every session command.
type Envelope struct {
	Opcode    Opcode
	SessionID uint32
}

// CreateRequest follows an OpCreate envelope.
type CreateRequest struct {
	EventID uint32
	Rows    uint64
	Cols    uint64
}

// ReserveRequest follows an OpReserve envelope. On the wire the fixed
// part carries the event id and len(Xs); it is followed by every row
// coordinate and then every column coordinate.
type ReserveRequest struct {
	EventID uint32
	Xs      []uint64
	Ys      []uint64
}

// ShowResponse answers OpShow. Seats holds Rows*Cols values in
// row-major order and is empty when ReturnCode is non-zero.
type ShowResponse struct {
	ReturnCode int32
	Rows       uint64
	Cols       uint64
	Seats      []uint32
}

// ListResponse answers OpList.
type ListResponse struct {
	ReturnCode int32
	EventIDs   []uint32
}

func putPipeName(destination []byte, name string) {
	copy(destination[:PipeNameSize], name)
}

func pipeName(source []byte) string {
	name := source[:PipeNameSize]
	if end := bytes.IndexByte(name, 0); end >= 0 {
		name = name[:end]
	}
	return string(name)
}

func write(w io.Writer, buffer []byte, what string) error {
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func read(r io.Reader, buffer []byte, what string) error {
	if _, err := io.ReadFull(r, buffer); err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}
	return nil
}
