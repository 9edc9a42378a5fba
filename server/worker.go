// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/bureau-foundation/ems/lib/config"
	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/lib/handoff"
	"github.com/bureau-foundation/ems/protocol"
)

// work serves one session at a time until the queue closes.
func (s *Server) work(slot int) error {
	logger := s.logger.With("worker", slot)
	for {
		registration, err := s.queue.Pop()
		if err != nil {
			if errors.Is(err, handoff.ErrClosed) {
				return nil
			}
			return fmt.Errorf("worker %d: %w", slot, err)
		}
		if err := s.serveSession(slot, registration, logger); err != nil {
			return fmt.Errorf("worker %d: %w", slot, err)
		}
	}
}

func (s *Server) sessionID(slot int) uint32 {
	if s.sessionIDs == config.SessionIDSequence {
		return s.nextSessionID.Add(1) - 1
	}
	return uint32(slot)
}

// serveSession opens the client's pipes in the order the client opens
// them (request first, then response), announces the session id, and
// runs the command loop.
func (s *Server) serveSession(slot int, registration protocol.Registration, logger *slog.Logger) error {
	active := &session{
		slot:         slot,
		id:           s.sessionID(slot),
		registration: registration,
	}
	logger = logger.With("session", active.id)

	s.trackSession(active)
	defer s.untrackSession(active)
	defer active.close()

	if s.stopping.Load() {
		return nil
	}

	request, err := fifo.OpenRead(registration.RequestPipe)
	if err != nil {
		return s.openError(active, err, logger)
	}
	active.attachRequest(request)

	response, err := fifo.OpenWrite(registration.ResponsePipe)
	if err != nil {
		return s.openError(active, err, logger)
	}
	active.attachResponse(response)

	if s.stopping.Load() {
		return nil
	}

	if err := protocol.WriteSetupResponse(response, active.id); err != nil {
		return s.sessionError(active, err)
	}
	logger.Debug("session started", "request_pipe", registration.RequestPipe)

	if err := s.runSession(active, logger); err != nil {
		return s.sessionError(active, err)
	}

	s.sessionsServed.Add(1)
	logger.Debug("session ended")
	return nil
}

// openError drops a registration whose pipes were removed before a
// worker reached it, which is what a client that gave up waiting
// leaves behind. Any other open failure is fatal.
func (s *Server) openError(active *session, err error, logger *slog.Logger) error {
	if errors.Is(err, fs.ErrNotExist) && !s.stopping.Load() {
		logger.Warn("session pipe vanished before the session started, dropping registration", "error", err)
		return nil
	}
	return s.sessionError(active, err)
}

// sessionError drops errors caused by shutdown closing the session's
// pipes and wraps the rest.
func (s *Server) sessionError(active *session, err error) error {
	if s.stopping.Load() {
		return nil
	}
	return fmt.Errorf("session %d: %w", active.id, err)
}
