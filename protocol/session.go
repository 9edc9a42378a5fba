// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"io"
)

// MaxGridCells bounds rows*cols accepted by ReadShowResponse. It only
// protects clients from a corrupt header; the server never produces
// grids this large.
const MaxGridCells = 1 << 24

// MaxListLength bounds the id count accepted by ReadListResponse.
const MaxListLength = 1 << 24

// WriteEnvelope writes a bare envelope. QUIT and LIST commands consist
// of nothing else.
func WriteEnvelope(w io.Writer, envelope Envelope) error {
	var buffer [EnvelopeSize]byte
	putEnvelope(buffer[:], envelope)
	return write(w, buffer[:], "envelope")
}

// ReadEnvelope reads the prefix of the next session command.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var buffer [EnvelopeSize]byte
	if err := read(r, buffer[:], "envelope"); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Opcode:    Opcode(buffer[0]),
		SessionID: byteOrder.Uint32(buffer[1:5]),
	}, nil
}

func putEnvelope(buffer []byte, envelope Envelope) {
	buffer[0] = byte(envelope.Opcode)
	byteOrder.PutUint32(buffer[1:5], envelope.SessionID)
}

// WriteCreate writes a complete CREATE command.
func WriteCreate(w io.Writer, sessionID uint32, request CreateRequest) error {
	var buffer [EnvelopeSize + CreateRequestSize]byte
	putEnvelope(buffer[:], Envelope{Opcode: OpCreate, SessionID: sessionID})
	body := buffer[EnvelopeSize:]
	byteOrder.PutUint32(body[0:4], request.EventID)
	byteOrder.PutUint64(body[4:12], request.Rows)
	byteOrder.PutUint64(body[12:20], request.Cols)
	return write(w, buffer[:], "create request")
}

// ReadCreateRequest reads the body of a CREATE command.
func ReadCreateRequest(r io.Reader) (CreateRequest, error) {
	var buffer [CreateRequestSize]byte
	if err := read(r, buffer[:], "create request"); err != nil {
		return CreateRequest{}, err
	}
	return CreateRequest{
		EventID: byteOrder.Uint32(buffer[0:4]),
		Rows:    byteOrder.Uint64(buffer[4:12]),
		Cols:    byteOrder.Uint64(buffer[12:20]),
	}, nil
}

// WriteReserve writes a complete RESERVE command. Xs and Ys must have
// the same length.
func WriteReserve(w io.Writer, sessionID uint32, request ReserveRequest) error {
	if len(request.Xs) != len(request.Ys) {
		return fmt.Errorf("write reserve request: %d xs but %d ys", len(request.Xs), len(request.Ys))
	}
	count := len(request.Xs)
	buffer := make([]byte, EnvelopeSize+ReserveRequestSize+16*count)
	putEnvelope(buffer, Envelope{Opcode: OpReserve, SessionID: sessionID})
	body := buffer[EnvelopeSize:]
	byteOrder.PutUint32(body[0:4], request.EventID)
	byteOrder.PutUint64(body[4:12], uint64(count))
	coordinates := body[ReserveRequestSize:]
	for i, x := range request.Xs {
		byteOrder.PutUint64(coordinates[8*i:], x)
	}
	coordinates = coordinates[8*count:]
	for i, y := range request.Ys {
		byteOrder.PutUint64(coordinates[8*i:], y)
	}
	return write(w, buffer, "reserve request")
}

// ReadReserveHeader reads the fixed part of a RESERVE body and returns
// the event id and the number of coordinate pairs that follow. The
// caller decides whether to accept the count before reading the
// coordinates with ReadCoordinates.
func ReadReserveHeader(r io.Reader) (eventID uint32, count uint64, err error) {
	var buffer [ReserveRequestSize]byte
	if err := read(r, buffer[:], "reserve request"); err != nil {
		return 0, 0, err
	}
	return byteOrder.Uint32(buffer[0:4]), byteOrder.Uint64(buffer[4:12]), nil
}

// ReadCoordinates reads count row coordinates followed by count column
// coordinates.
func ReadCoordinates(r io.Reader, count int) (xs, ys []uint64, err error) {
	buffer := make([]byte, 16*count)
	if err := read(r, buffer, "reserve coordinates"); err != nil {
		return nil, nil, err
	}
	xs = make([]uint64, count)
	ys = make([]uint64, count)
	for i := range count {
		xs[i] = byteOrder.Uint64(buffer[8*i:])
		ys[i] = byteOrder.Uint64(buffer[8*(count+i):])
	}
	return xs, ys, nil
}

// WriteShow writes a complete SHOW command.
func WriteShow(w io.Writer, sessionID uint32, eventID uint32) error {
	var buffer [EnvelopeSize + ShowRequestSize]byte
	putEnvelope(buffer[:], Envelope{Opcode: OpShow, SessionID: sessionID})
	byteOrder.PutUint32(buffer[EnvelopeSize:], eventID)
	return write(w, buffer[:], "show request")
}

// ReadShowRequest reads the body of a SHOW command.
func ReadShowRequest(r io.Reader) (uint32, error) {
	var buffer [ShowRequestSize]byte
	if err := read(r, buffer[:], "show request"); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buffer[:]), nil
}

// WriteReturnCode writes a CREATE or RESERVE response.
func WriteReturnCode(w io.Writer, code int32) error {
	var buffer [CreateResponseSize]byte
	byteOrder.PutUint32(buffer[:], uint32(code))
	return write(w, buffer[:], "response")
}

// ReadReturnCode reads a CREATE or RESERVE response.
func ReadReturnCode(r io.Reader) (int32, error) {
	var buffer [CreateResponseSize]byte
	if err := read(r, buffer[:], "response"); err != nil {
		return 0, err
	}
	return int32(byteOrder.Uint32(buffer[:])), nil
}

// WriteShowResponse writes the fixed part and the seat array in one
// write.
func WriteShowResponse(w io.Writer, response ShowResponse) error {
	buffer := make([]byte, ShowResponseSize+4*len(response.Seats))
	byteOrder.PutUint32(buffer[0:4], uint32(response.ReturnCode))
	byteOrder.PutUint64(buffer[4:12], response.Rows)
	byteOrder.PutUint64(buffer[12:20], response.Cols)
	for i, seat := range response.Seats {
		byteOrder.PutUint32(buffer[ShowResponseSize+4*i:], seat)
	}
	return write(w, buffer, "show response")
}

// ReadShowResponse reads a SHOW response. The seat array is read only
// when the return code is zero.
func ReadShowResponse(r io.Reader) (ShowResponse, error) {
	var header [ShowResponseSize]byte
	if err := read(r, header[:], "show response"); err != nil {
		return ShowResponse{}, err
	}
	response := ShowResponse{
		ReturnCode: int32(byteOrder.Uint32(header[0:4])),
		Rows:       byteOrder.Uint64(header[4:12]),
		Cols:       byteOrder.Uint64(header[12:20]),
	}
	if response.ReturnCode != ReturnOK {
		return response, nil
	}
	if response.Rows != 0 && response.Cols > MaxGridCells/response.Rows {
		return ShowResponse{}, fmt.Errorf("read show response: grid %dx%d exceeds %d cells",
			response.Rows, response.Cols, MaxGridCells)
	}
	cells := int(response.Rows * response.Cols)
	buffer := make([]byte, 4*cells)
	if err := read(r, buffer, "show seats"); err != nil {
		return ShowResponse{}, err
	}
	response.Seats = make([]uint32, cells)
	for i := range response.Seats {
		response.Seats[i] = byteOrder.Uint32(buffer[4*i:])
	}
	return response, nil
}

// WriteListResponse writes the fixed part and the id array in one
// write.
func WriteListResponse(w io.Writer, response ListResponse) error {
	buffer := make([]byte, ListResponseSize+4*len(response.EventIDs))
	byteOrder.PutUint32(buffer[0:4], uint32(response.ReturnCode))
	byteOrder.PutUint64(buffer[4:12], uint64(len(response.EventIDs)))
	for i, id := range response.EventIDs {
		byteOrder.PutUint32(buffer[ListResponseSize+4*i:], id)
	}
	return write(w, buffer, "list response")
}

// ReadListResponse reads a LIST response.
func ReadListResponse(r io.Reader) (ListResponse, error) {
	var header [ListResponseSize]byte
	if err := read(r, header[:], "list response"); err != nil {
		return ListResponse{}, err
	}
	response := ListResponse{ReturnCode: int32(byteOrder.Uint32(header[0:4]))}
	count := byteOrder.Uint64(header[4:12])
	if count > MaxListLength {
		return ListResponse{}, fmt.Errorf("read list response: %d events exceeds %d", count, MaxListLength)
	}
	buffer := make([]byte, 4*count)
	if err := read(r, buffer, "list ids"); err != nil {
		return ListResponse{}, err
	}
	response.EventIDs = make([]uint32, count)
	for i := range response.EventIDs {
		response.EventIDs[i] = byteOrder.Uint32(buffer[4*i:])
	}
	return response, nil
}
