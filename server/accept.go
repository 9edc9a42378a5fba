// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"os"

	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/lib/handoff"
	"github.com/bureau-foundation/ems/protocol"
)

// accept moves registrations from the registration FIFO onto the
// queue. It never opens a client's pipes. Returns nil on shutdown.
func (s *Server) accept(registration *os.File) error {
	for {
		opcode, err := protocol.ReadOpcode(registration)
		if err != nil {
			if fifo.IsInterrupted(err) {
				continue
			}
			return s.registrationError(err)
		}
		if opcode != protocol.OpSetup {
			return fmt.Errorf("registration pipe: unexpected %v message", opcode)
		}

		record, err := protocol.ReadRegistration(registration)
		if err != nil {
			return s.registrationError(err)
		}
		if err := record.Validate(); err != nil {
			return fmt.Errorf("registration pipe: %w", err)
		}

		s.logger.Debug("registration received",
			"request_pipe", record.RequestPipe,
			"response_pipe", record.ResponsePipe,
			"queued", s.queue.Len(),
		)
		if err := s.queue.Push(record); err != nil {
			if errors.Is(err, handoff.ErrClosed) {
				return nil
			}
			return fmt.Errorf("queueing registration: %w", err)
		}
	}
}

func (s *Server) registrationError(err error) error {
	if s.stopping.Load() && fifo.IsExpectedCloseError(err) {
		return nil
	}
	return fmt.Errorf("registration pipe: %w", err)
}
