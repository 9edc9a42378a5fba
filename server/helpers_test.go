// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/ems/client"
	"github.com/bureau-foundation/ems/lib/eventstore"
	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/lib/testutil"
	"github.com/bureau-foundation/ems/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// dumpRecorder collects snapshot output and signals every write.
type dumpRecorder struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
	writes chan struct{}
}

func newDumpRecorder() *dumpRecorder {
	return &dumpRecorder{writes: make(chan struct{}, 1)}
}

func (r *dumpRecorder) Write(data []byte) (int, error) {
	r.mutex.Lock()
	r.buffer.Write(data)
	r.mutex.Unlock()
	select {
	case r.writes <- struct{}{}:
	default:
	}
	return len(data), nil
}

func (r *dumpRecorder) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.buffer.String()
}

// waitFor returns the recorded output once it contains want.
func (r *dumpRecorder) waitFor(t *testing.T, want string) string {
	t.Helper()
	for {
		if output := r.String(); strings.Contains(output, want) {
			return output
		}
		testutil.RequireReceive(t, r.writes, 5*time.Second, "waiting for dump containing %q; have %q", want, r.String())
	}
}

type testServer struct {
	*Server
	directory string
	path      string
	store     *eventstore.Store
	dumps     *dumpRecorder

	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
	stopErr  error
}

// startServer runs a server on a fresh registration FIFO and stops it
// when the test ends. modify may adjust the options first.
func startServer(t *testing.T, modify func(*Options)) *testServer {
	t.Helper()
	directory := testutil.PipeDir(t)
	store, err := eventstore.New(eventstore.Options{})
	if err != nil {
		t.Fatal(err)
	}

	dumps := newDumpRecorder()
	options := Options{
		RegistrationPipe:   filepath.Join(directory, "server"),
		Workers:            4,
		QueueCapacity:      4,
		MaxReservationSize: 256,
		Store:              store,
		DumpOutput:         dumps,
		Logger:             testLogger(),
	}
	if modify != nil {
		modify(&options)
	}
	server, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	instance := &testServer{
		Server:    server,
		directory: directory,
		path:      options.RegistrationPipe,
		store:     store,
		dumps:     dumps,
		cancel:    cancel,
		done:      make(chan error, 1),
	}
	go func() { instance.done <- server.Serve(ctx) }()

	select {
	case <-server.Ready():
	case err := <-instance.done:
		t.Fatalf("Serve returned before ready: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		if err := instance.stop(t); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return instance
}

// stop cancels Serve and returns its result. Safe to call repeatedly.
func (s *testServer) stop(t *testing.T) error {
	t.Helper()
	s.stopOnce.Do(func() {
		s.cancel()
		s.stopErr = testutil.RequireReceive(t, s.done, 10*time.Second, "waiting for Serve to return")
	})
	return s.stopErr
}

// connect opens a client session named name.
func (s *testServer) connect(t *testing.T, name string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := client.Setup(ctx,
		filepath.Join(s.directory, name+".req"),
		filepath.Join(s.directory, name+".resp"),
		s.path,
	)
	if err != nil {
		t.Fatalf("Setup(%s): %v", name, err)
	}
	return session
}

// rawSession registers a session by hand so a test can write bytes
// the client library never sends.
type rawSession struct {
	id       uint32
	request  *os.File
	response *os.File
}

func (s *testServer) rawConnect(t *testing.T, name string) *rawSession {
	t.Helper()
	requestPath := filepath.Join(s.directory, name+".req")
	responsePath := filepath.Join(s.directory, name+".resp")
	s.register(t, requestPath, responsePath)

	request, err := fifo.OpenWrite(requestPath)
	if err != nil {
		t.Fatal(err)
	}
	response, err := fifo.OpenRead(responsePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		request.Close()
		response.Close()
	})

	id, err := protocol.ReadSetupResponse(response)
	if err != nil {
		t.Fatalf("reading setup response: %v", err)
	}
	return &rawSession{id: id, request: request, response: response}
}

// register creates both FIFOs and writes a registration for them
// without opening either.
func (s *testServer) register(t *testing.T, requestPath, responsePath string) {
	t.Helper()
	for _, path := range []string{requestPath, responsePath} {
		if err := fifo.Create(path, fifo.DefaultMode); err != nil {
			t.Fatal(err)
		}
	}
	registration, err := fifo.OpenWrite(s.path)
	if err != nil {
		t.Fatal(err)
	}
	defer registration.Close()
	err = protocol.WriteRegistration(registration, protocol.Registration{
		RequestPipe:  requestPath,
		ResponsePipe: responsePath,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// waitUntil spins until condition holds or the test context ends.
func waitUntil(t *testing.T, description string, condition func() bool) {
	t.Helper()
	for !condition() {
		if t.Context().Err() != nil {
			t.Fatalf("gave up waiting for %s", description)
		}
		time.Sleep(time.Millisecond)
	}
}
