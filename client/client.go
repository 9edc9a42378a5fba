// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/ems/lib/fifo"
	"github.com/bureau-foundation/ems/protocol"
)

// ErrRequestFailed is returned when the server answers a command with
// a non-zero return code.
var ErrRequestFailed = errors.New("request failed")

// Grid is the seat map returned by Show, row-major.
type Grid struct {
	EventID uint32
	Rows    uint64
	Cols    uint64
	Seats   []uint32
}

// At returns the seat value at row, col.
func (g Grid) At(row, col uint64) uint32 {
	return g.Seats[row*g.Cols+col]
}

// Client is one open session.
type Client struct {
	sessionID    uint32
	requestPath  string
	responsePath string
	request      *os.File
	response     *os.File
}

// Setup opens a session with the server listening on serverPath. Any
// file already at requestPath or responsePath is replaced with a new
// FIFO. Cancelling ctx abandons a setup that is still waiting for a
// worker.
func Setup(ctx context.Context, requestPath, responsePath, serverPath string) (*Client, error) {
	registration := protocol.Registration{RequestPipe: requestPath, ResponsePipe: responsePath}
	if err := registration.Validate(); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	for _, path := range []string{requestPath, responsePath} {
		if err := fifo.Remove(path); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
		if err := fifo.Create(path, fifo.DefaultMode); err != nil {
			removeAll(requestPath, responsePath)
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	client := &Client{requestPath: requestPath, responsePath: responsePath}
	if err := client.register(ctx, serverPath, registration); err != nil {
		client.closeFiles()
		removeAll(requestPath, responsePath)
		return nil, fmt.Errorf("setup: %w", err)
	}
	return client, nil
}

func (c *Client) register(ctx context.Context, serverPath string, registration protocol.Registration) error {
	server, err := fifo.OpenWriteNoWait(serverPath)
	if err != nil {
		return err
	}
	err = protocol.WriteRegistration(server, registration)
	server.Close()
	if err != nil {
		return err
	}

	// The worker may not reach our pipes until long after the
	// registration is queued. On cancellation, close what is open and
	// keep waking what is still being opened until register returns.
	var (
		mutex    sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		for {
			mutex.Lock()
			if finished {
				mutex.Unlock()
				return
			}
			if c.request == nil {
				fifo.Wake(c.requestPath)
			} else if c.response == nil {
				fifo.Wake(c.responsePath)
			} else {
				c.response.Close()
			}
			mutex.Unlock()
			time.Sleep(10 * time.Millisecond)
		}
	})
	defer func() {
		stop()
		mutex.Lock()
		finished = true
		mutex.Unlock()
	}()

	request, err := fifo.OpenWrite(c.requestPath)
	mutex.Lock()
	c.request = request
	mutex.Unlock()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	response, err := fifo.OpenRead(c.responsePath)
	mutex.Lock()
	c.response = response
	mutex.Unlock()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.sessionID, err = protocol.ReadSetupResponse(c.response)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// SessionID returns the id the server assigned to this session.
func (c *Client) SessionID() uint32 { return c.sessionID }

// Create asks the server to create an event with a rows×cols grid.
func (c *Client) Create(eventID uint32, rows, cols uint64) error {
	request := protocol.CreateRequest{EventID: eventID, Rows: rows, Cols: cols}
	if err := protocol.WriteCreate(c.request, c.sessionID, request); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return c.readReturnCode("create", eventID)
}

// Reserve reserves the seats (xs[i], ys[i]) as one reservation.
func (c *Client) Reserve(eventID uint32, xs, ys []uint64) error {
	request := protocol.ReserveRequest{EventID: eventID, Xs: xs, Ys: ys}
	if err := protocol.WriteReserve(c.request, c.sessionID, request); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	return c.readReturnCode("reserve", eventID)
}

// Show returns the seat map of an event.
func (c *Client) Show(eventID uint32) (Grid, error) {
	if err := protocol.WriteShow(c.request, c.sessionID, eventID); err != nil {
		return Grid{}, fmt.Errorf("show: %w", err)
	}
	response, err := protocol.ReadShowResponse(c.response)
	if err != nil {
		return Grid{}, fmt.Errorf("show: %w", err)
	}
	if response.ReturnCode != protocol.ReturnOK {
		return Grid{}, fmt.Errorf("show event %d: %w", eventID, ErrRequestFailed)
	}
	return Grid{
		EventID: eventID,
		Rows:    response.Rows,
		Cols:    response.Cols,
		Seats:   response.Seats,
	}, nil
}

// List returns the ids of all events in creation order.
func (c *Client) List() ([]uint32, error) {
	envelope := protocol.Envelope{Opcode: protocol.OpList, SessionID: c.sessionID}
	if err := protocol.WriteEnvelope(c.request, envelope); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	response, err := protocol.ReadListResponse(c.response)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if response.ReturnCode != protocol.ReturnOK {
		return nil, fmt.Errorf("list: %w", ErrRequestFailed)
	}
	return response.EventIDs, nil
}

// Quit ends the session and removes both session FIFOs. The Client
// must not be used afterwards.
func (c *Client) Quit() error {
	envelope := protocol.Envelope{Opcode: protocol.OpQuit, SessionID: c.sessionID}
	var errs []error
	if err := protocol.WriteEnvelope(c.request, envelope); err != nil {
		errs = append(errs, fmt.Errorf("quit: %w", err))
	}
	errs = append(errs, c.closeFiles())
	errs = append(errs, removeAll(c.requestPath, c.responsePath))
	return errors.Join(errs...)
}

func (c *Client) readReturnCode(operation string, eventID uint32) error {
	code, err := protocol.ReadReturnCode(c.response)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if code != protocol.ReturnOK {
		return fmt.Errorf("%s event %d: %w", operation, eventID, ErrRequestFailed)
	}
	return nil
}

func (c *Client) closeFiles() error {
	var errs []error
	for _, file := range []*os.File{c.request, c.response} {
		if file == nil {
			continue
		}
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.request, c.response = nil, nil
	return errors.Join(errs...)
}

func removeAll(paths ...string) error {
	var errs []error
	for _, path := range paths {
		errs = append(errs, fifo.Remove(path))
	}
	return errors.Join(errs...)
}
