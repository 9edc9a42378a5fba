// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/bureau-foundation/ems/lib/eventstore"
)

// WriteSnapshot writes every event in store, in creation order, as
//
//	Event <id>:
//	<seat> <seat> ...
//
// with one line per row. Each event is written while its lock is held,
// so every event block is internally consistent; different events may
// reflect different moments.
func WriteSnapshot(w io.Writer, store *eventstore.Store) error {
	var line []byte
	return store.Visit(func(grid eventstore.Grid) error {
		line = line[:0]
		line = fmt.Appendf(line, "Event %d:\n", grid.ID)
		for row := range grid.Rows {
			for col := range grid.Cols {
				if col > 0 {
					line = append(line, ' ')
				}
				line = strconv.AppendUint(line, uint64(grid.At(row, col)), 10)
			}
			line = append(line, '\n')
		}
		_, err := w.Write(line)
		return err
	})
}

// dump runs on the Serve goroutine in response to RequestSnapshot.
func (s *Server) dump() error {
	started := s.clock.Now()

	output := s.dumpOutput
	var archived bytes.Buffer
	if s.archive != nil {
		output = io.MultiWriter(s.dumpOutput, &archived)
	}
	if err := WriteSnapshot(output, s.store); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	s.snapshots.Add(1)

	if s.archive == nil {
		s.logger.Info("snapshot written",
			"events", s.store.Len(),
			"duration", s.clock.Now().Sub(started),
		)
		return nil
	}

	record, err := s.archive.Write(archived.Bytes())
	if err != nil {
		return fmt.Errorf("archiving snapshot: %w", err)
	}
	s.logger.Info("snapshot written",
		"events", s.store.Len(),
		"duration", s.clock.Now().Sub(started),
		"archive", record.Path,
		"digest", record.Digest.String(),
		"bytes", record.Size,
		"stored_bytes", record.StoredSize,
	)
	return nil
}
