// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/ems/lib/codec"
	"github.com/bureau-foundation/ems/lib/control"
	"github.com/bureau-foundation/ems/lib/version"
)

func (s *Server) newControlServer() *control.Server {
	controlServer := control.NewServer(s.controlSocket, s.logger.With("component", "control"))
	controlServer.Handle(control.ActionStatus, s.handleStatus)
	controlServer.Handle(control.ActionList, s.handleList)
	controlServer.Handle(control.ActionShow, s.handleShow)
	controlServer.Handle(control.ActionSnapshot, s.handleSnapshot)
	return controlServer
}

// Status reports live counters.
func (s *Server) Status() control.StatusResponse {
	return control.StatusResponse{
		Version:        version.Info(),
		UptimeSeconds:  s.clock.Now().Sub(s.startedAt).Seconds(),
		Workers:        s.workers,
		QueueDepth:     s.queue.Len(),
		QueueCapacity:  s.queue.Capacity(),
		ActiveSessions: s.activeSessions(),
		SessionsServed: s.sessionsServed.Load(),
		Events:         s.store.Len(),
		Snapshots:      s.snapshots.Load(),
	}
}

func (s *Server) handleStatus(context.Context, []byte) (any, error) {
	return s.Status(), nil
}

func (s *Server) handleList(context.Context, []byte) (any, error) {
	ids, err := s.store.List()
	if err != nil {
		return nil, err
	}
	return control.ListResponse{EventIDs: ids}, nil
}

func (s *Server) handleShow(_ context.Context, raw []byte) (any, error) {
	var request control.ShowRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid show request: %w", err)
	}
	grid, err := s.store.Show(request.EventID)
	if err != nil {
		return nil, err
	}
	return control.ShowResponse{
		EventID: grid.ID,
		Rows:    grid.Rows,
		Cols:    grid.Cols,
		Seats:   grid.Seats,
	}, nil
}

func (s *Server) handleSnapshot(context.Context, []byte) (any, error) {
	s.RequestSnapshot()
	return control.SnapshotResponse{Queued: true}, nil
}
