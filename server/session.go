// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/ems/lib/eventstore"
	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/protocol"
)

// session is the state of one client session. The worker owns the
// files; shutdown may close them from another goroutine through
// interrupt.
type session struct {
	slot         int
	id           uint32
	registration protocol.Registration

	mutex    sync.Mutex
	request  *os.File
	response *os.File
}

func (c *session) attachRequest(file *os.File) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.request = file
}

func (c *session) attachResponse(file *os.File) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.response = file
}

// interrupt unblocks the worker serving this session. Open pipes are
// closed, which fails pending reads and writes with os.ErrClosed; a
// pipe still being opened is woken instead.
func (c *session) interrupt() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.request != nil {
		c.request.Close()
	} else {
		fifo.Wake(c.registration.RequestPipe)
	}
	if c.response != nil {
		c.response.Close()
	} else if c.request != nil {
		fifo.Wake(c.registration.ResponsePipe)
	}
}

func (c *session) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.request != nil {
		c.request.Close()
	}
	if c.response != nil {
		c.response.Close()
	}
}

// runSession executes commands until QUIT, a clean EOF between
// commands, or a protocol violation. The returned error is a transport
// failure.
func (s *Server) runSession(active *session, logger *slog.Logger) error {
	for {
		envelope, err := protocol.ReadEnvelope(active.request)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Warn("client closed session without quit")
				return nil
			}
			return err
		}
		if envelope.SessionID != active.id {
			logger.Warn("session id mismatch",
				"got", envelope.SessionID,
				"opcode", envelope.Opcode,
			)
		}

		end, err := s.dispatch(active, envelope.Opcode, logger)
		if err != nil {
			return err
		}
		if end {
			return nil
		}
	}
}

// dispatch runs one command. end reports that the session is over.
func (s *Server) dispatch(active *session, opcode protocol.Opcode, logger *slog.Logger) (bool, error) {
	request, response := active.request, active.response

	switch opcode {
	case protocol.OpQuit:
		return true, nil

	case protocol.OpCreate:
		body, err := protocol.ReadCreateRequest(request)
		if err != nil {
			return true, err
		}
		err = s.store.Create(body.EventID, body.Rows, body.Cols)
		logResult(logger, "create", body.EventID, err)
		return false, protocol.WriteReturnCode(response, returnCode(err))

	case protocol.OpReserve:
		eventID, count, err := protocol.ReadReserveHeader(request)
		if err != nil {
			return true, err
		}
		if count > uint64(s.maxReservationSize) {
			// The coordinates are left unread, so the stream cannot
			// be resynchronized.
			logger.Warn("reservation too large, ending session",
				"event_id", eventID,
				"seats", count,
				"limit", s.maxReservationSize,
			)
			return true, protocol.WriteReturnCode(response, protocol.ReturnFailed)
		}
		xs, ys, err := protocol.ReadCoordinates(request, int(count))
		if err != nil {
			return true, err
		}
		seats := make([]eventstore.Seat, count)
		for i := range seats {
			seats[i] = eventstore.Seat{Row: xs[i], Col: ys[i]}
		}
		err = s.store.Reserve(eventID, seats)
		logResult(logger, "reserve", eventID, err)
		return false, protocol.WriteReturnCode(response, returnCode(err))

	case protocol.OpShow:
		eventID, err := protocol.ReadShowRequest(request)
		if err != nil {
			return true, err
		}
		grid, err := s.store.Show(eventID)
		logResult(logger, "show", eventID, err)
		if err != nil {
			return false, protocol.WriteShowResponse(response, protocol.ShowResponse{ReturnCode: protocol.ReturnFailed})
		}
		return false, protocol.WriteShowResponse(response, protocol.ShowResponse{
			ReturnCode: protocol.ReturnOK,
			Rows:       grid.Rows,
			Cols:       grid.Cols,
			Seats:      grid.Seats,
		})

	case protocol.OpList:
		ids, err := s.store.List()
		if err != nil {
			logger.Debug("list failed", "error", err)
			return false, protocol.WriteListResponse(response, protocol.ListResponse{ReturnCode: protocol.ReturnFailed})
		}
		return false, protocol.WriteListResponse(response, protocol.ListResponse{
			ReturnCode: protocol.ReturnOK,
			EventIDs:   ids,
		})

	default:
		logger.Warn("unexpected message on session pipe, ending session", "opcode", opcode)
		return true, nil
	}
}

func returnCode(err error) int32 {
	if err != nil {
		return protocol.ReturnFailed
	}
	return protocol.ReturnOK
}

func logResult(logger *slog.Logger, operation string, eventID uint32, err error) {
	if err != nil {
		logger.Debug(operation+" failed", "event_id", eventID, "error", err)
		return
	}
	logger.Debug(operation, "event_id", eventID)
}
