// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bureau-foundation/ems/lib/archive"
	"github.com/bureau-foundation/ems/lib/clock"
	"github.com/bureau-foundation/ems/lib/config"
	"github.com/bureau-foundation/ems/lib/eventstore"
	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/lib/handoff"
	"github.com/bureau-foundation/ems/protocol"
)

// Options configures a Server. Store and RegistrationPipe are
// required.
type Options struct {
	RegistrationPipe   string
	Workers            int
	QueueCapacity      int
	MaxReservationSize int
	SessionIDs         config.SessionIDPolicy

	Store *eventstore.Store

	// DumpOutput receives snapshot dumps. Defaults to os.Stdout.
	DumpOutput io.Writer

	// Archive, when set, also stores every dump on disk.
	Archive *archive.Writer

	// ControlSocket, when set, is the Unix socket path for the
	// control server.
	ControlSocket string

	// HandleSignals installs a SIGUSR1 handler that requests a dump.
	HandleSignals bool

	Logger *slog.Logger
	Clock  clock.Clock
}

// Server is one ems-server instance. Serve may be called once.
type Server struct {
	registrationPath   string
	workers            int
	maxReservationSize int
	sessionIDs         config.SessionIDPolicy
	controlSocket      string
	handleSignals      bool

	store      *eventstore.Store
	queue      *handoff.Queue[protocol.Registration]
	dumpOutput io.Writer
	archive    *archive.Writer
	logger     *slog.Logger
	clock      clock.Clock

	startedAt time.Time
	ready     chan struct{}

	// stopping is set before shutdown starts closing files, so
	// goroutines can tell a shutdown-induced error from a real one.
	stopping atomic.Bool

	snapshotRequested atomic.Bool
	snapshotNudge     chan struct{}
	snapshots         atomic.Uint64

	nextSessionID  atomic.Uint32
	sessionsServed atomic.Uint64

	sessionsMutex sync.Mutex
	sessions      map[int]*session
}

// New validates options and returns a Server ready to Serve.
func New(options Options) (*Server, error) {
	if options.RegistrationPipe == "" {
		return nil, errors.New("registration pipe path is required")
	}
	if options.Store == nil {
		return nil, errors.New("event store is required")
	}
	if options.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", options.Workers)
	}
	if options.QueueCapacity < 1 {
		return nil, fmt.Errorf("queue capacity must be at least 1, got %d", options.QueueCapacity)
	}
	if options.MaxReservationSize < 1 {
		return nil, fmt.Errorf("max reservation size must be at least 1, got %d", options.MaxReservationSize)
	}
	switch options.SessionIDs {
	case "":
		options.SessionIDs = config.SessionIDSlot
	case config.SessionIDSlot, config.SessionIDSequence:
	default:
		return nil, fmt.Errorf("unknown session id policy %q", options.SessionIDs)
	}
	if options.DumpOutput == nil {
		options.DumpOutput = os.Stdout
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	return &Server{
		registrationPath:   options.RegistrationPipe,
		workers:            options.Workers,
		maxReservationSize: options.MaxReservationSize,
		sessionIDs:         options.SessionIDs,
		controlSocket:      options.ControlSocket,
		handleSignals:      options.HandleSignals,
		store:              options.Store,
		queue:              handoff.New[protocol.Registration](options.QueueCapacity),
		dumpOutput:         options.DumpOutput,
		archive:            options.Archive,
		logger:             options.Logger,
		clock:              options.Clock,
		ready:              make(chan struct{}),
		snapshotNudge:      make(chan struct{}, 1),
		sessions:           make(map[int]*session),
	}, nil
}

// Ready is closed once the registration FIFO exists and is open.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// RequestSnapshot asks the Serve goroutine to dump every event. It
// never blocks; requests made while one is pending coalesce.
func (s *Server) RequestSnapshot() {
	s.snapshotRequested.Store(true)
	select {
	case s.snapshotNudge <- struct{}{}:
	default:
	}
}

// Serve runs the server until ctx is cancelled or a fatal error
// occurs, then shuts down. The registration FIFO is removed before
// Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	if err := fifo.Create(s.registrationPath, fifo.DefaultMode); err != nil {
		return fmt.Errorf("creating registration pipe: %w", err)
	}
	defer func() {
		if err := fifo.Remove(s.registrationPath); err != nil {
			s.logger.Error("removing registration pipe", "error", err)
		}
	}()

	registration, err := fifo.OpenReadWrite(s.registrationPath)
	if err != nil {
		return fmt.Errorf("opening registration pipe: %w", err)
	}

	s.startedAt = s.clock.Now()
	s.logger.Info("server started",
		"registration_pipe", s.registrationPath,
		"workers", s.workers,
		"queue_capacity", s.queue.Capacity(),
		"session_ids", s.sessionIDs,
	)

	// One slot per goroutine that can report, so none ever blocks.
	fatal := make(chan error, s.workers+2)

	var acceptDone sync.WaitGroup
	acceptDone.Go(func() {
		if err := s.accept(registration); err != nil {
			fatal <- err
		}
	})

	var workersDone sync.WaitGroup
	for slot := range s.workers {
		workersDone.Go(func() {
			if err := s.work(slot); err != nil {
				fatal <- err
			}
		})
	}

	controlCtx, cancelControl := context.WithCancel(context.Background())
	defer cancelControl()
	var controlDone sync.WaitGroup
	if s.controlSocket != "" {
		controlServer := s.newControlServer()
		controlDone.Go(func() {
			if err := controlServer.Serve(controlCtx); err != nil {
				fatal <- fmt.Errorf("control socket: %w", err)
			}
		})
	}

	if s.handleSignals {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGUSR1)
		defer func() {
			signal.Stop(signals)
			close(signals)
		}()
		go func() {
			for range signals {
				s.RequestSnapshot()
			}
		}()
	}

	close(s.ready)

	var serveErr error
loop:
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			break loop
		case serveErr = <-fatal:
			s.logger.Error("fatal error, shutting down", "error", serveErr)
			break loop
		case <-s.snapshotNudge:
			if s.snapshotRequested.Swap(false) {
				if err := s.dump(); err != nil {
					s.logger.Error("snapshot failed", "error", err)
				}
			}
		}
	}

	s.stopping.Store(true)
	registration.Close()
	s.queue.Close()
	acceptDone.Wait()
	s.stopWorkers(&workersDone)
	cancelControl()
	controlDone.Wait()
	s.store.Close()

	s.logger.Info("server stopped", "sessions_served", s.sessionsServed.Load())
	return serveErr
}

// stopWorkers ends every session and waits for the pool to exit.
// Workers blocked opening a session FIFO cannot be interrupted by
// closing a file, so their FIFOs are woken until every worker is gone.
func (s *Server) stopWorkers(workersDone *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		workersDone.Wait()
		close(done)
	}()

	for {
		s.closeSessions()
		select {
		case <-done:
			return
		case <-s.clock.After(20 * time.Millisecond):
		}
	}
}

func (s *Server) closeSessions() {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	for _, active := range s.sessions {
		active.interrupt()
	}
}

func (s *Server) trackSession(active *session) {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	s.sessions[active.slot] = active
}

func (s *Server) untrackSession(active *session) {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	delete(s.sessions, active.slot)
}

func (s *Server) activeSessions() int {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	return len(s.sessions)
}
