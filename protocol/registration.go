// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "io"

// WriteRegistration writes the complete registration message: the
// SETUP opcode followed by the record. It is issued as one write so
// that concurrent clients cannot interleave on the shared channel
// (pipe writes up to PIPE_BUF bytes are atomic).
func WriteRegistration(w io.Writer, registration Registration) error {
	var buffer [1 + RegistrationSize]byte
	buffer[0] = byte(OpSetup)
	putPipeName(buffer[1:], registration.RequestPipe)
	putPipeName(buffer[1+PipeNameSize:], registration.ResponsePipe)
	return write(w, buffer[:], "registration")
}

// ReadOpcode reads the single opcode byte that starts every message
// on the registration channel.
func ReadOpcode(r io.Reader) (Opcode, error) {
	var buffer [1]byte
	if err := read(r, buffer[:], "opcode"); err != nil {
		return 0, err
	}
	return Opcode(buffer[0]), nil
}

// ReadRegistration reads the record that follows a SETUP opcode.
func ReadRegistration(r io.Reader) (Registration, error) {
	var buffer [RegistrationSize]byte
	if err := read(r, buffer[:], "registration"); err != nil {
		return Registration{}, err
	}
	return Registration{
		RequestPipe:  pipeName(buffer[:PipeNameSize]),
		ResponsePipe: pipeName(buffer[PipeNameSize:]),
	}, nil
}

// WriteSetupResponse sends the session id assigned to a new session.
func WriteSetupResponse(w io.Writer, sessionID uint32) error {
	var buffer [SetupResponseSize]byte
	byteOrder.PutUint32(buffer[:], sessionID)
	return write(w, buffer[:], "setup response")
}

// ReadSetupResponse reads the session id sent by WriteSetupResponse.
func ReadSetupResponse(r io.Reader) (uint32, error) {
	var buffer [SetupResponseSize]byte
	if err := read(r, buffer[:], "setup response"); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(buffer[:]), nil
}
