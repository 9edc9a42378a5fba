// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Ems-client drives an ems-server from the command line. Session
// commands (create, reserve, show, list) open one session on the
// server's registration pipe, run a single request, and quit. Control
// commands (status, snapshot) talk to the server's control socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/ems/client"
	"github.com/bureau-foundation/ems/lib/control"
	"github.com/bureau-foundation/ems/lib/process"
	"github.com/bureau-foundation/ems/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	serverPipe    string
	requestPipe   string
	responsePipe  string
	controlSocket string
	timeout       time.Duration
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "--version" {
		version.Print("ems-client")
		return nil
	}

	var opts options
	flagSet := pflag.NewFlagSet("ems-client", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.serverPipe, "server", "", "registration pipe of the server")
	flagSet.StringVar(&opts.requestPipe, "request-pipe", "", "request FIFO path (default: /tmp/ems-<pid>.req)")
	flagSet.StringVar(&opts.responsePipe, "response-pipe", "", "response FIFO path (default: /tmp/ems-<pid>.resp)")
	flagSet.StringVar(&opts.controlSocket, "control-socket", "", "control socket of the server")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up if the request has not completed in this time")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	positional := flagSet.Args()
	if len(positional) == 0 {
		printHelp(flagSet)
		return errors.New("missing command")
	}
	if opts.requestPipe == "" {
		opts.requestPipe = fmt.Sprintf("/tmp/ems-%d.req", os.Getpid())
	}
	if opts.responsePipe == "" {
		opts.responsePipe = fmt.Sprintf("/tmp/ems-%d.resp", os.Getpid())
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	logger := newLogger()
	command, commandArgs := positional[0], positional[1:]
	switch command {
	case "status", "snapshot":
		return runControl(ctx, opts, command, commandArgs, stdout)
	case "create", "reserve", "show", "list":
		request, err := parseSessionCommand(command, commandArgs)
		if err != nil {
			return err
		}
		return runSession(ctx, opts, request, stdout, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Command-line client for ems-server.

Usage:
  ems-client [flags] <command> [args]

Commands:
  create <event_id> <rows> <cols>      create an event with an empty seat map
  reserve <event_id> <row,col>...      reserve seats as one reservation
  show <event_id>                      print the seat map of an event
  list                                 print every event id
  status                               print server status (needs --control-socket)
  snapshot                             ask the server to dump every event (needs --control-socket)

Examples:
  ems-client --server /tmp/ems.pipe create 1 10 20
  ems-client --server /tmp/ems.pipe reserve 1 0,0 0,1 0,2
  ems-client --control-socket /tmp/ems.sock status

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

func newLogger() *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// sessionCommand is one parsed session request.
type sessionCommand struct {
	name    string
	eventID uint32
	rows    uint64
	cols    uint64
	xs      []uint64
	ys      []uint64
}

func parseSessionCommand(name string, args []string) (sessionCommand, error) {
	command := sessionCommand{name: name}
	want := map[string]int{"create": 3, "show": 1, "list": 0}
	if count, fixed := want[name]; fixed && len(args) != count {
		return command, fmt.Errorf("%s takes %d argument(s), got %d", name, count, len(args))
	}
	if name == "reserve" && len(args) < 2 {
		return command, errors.New("reserve takes an event id and at least one row,col seat")
	}
	if name == "list" {
		return command, nil
	}

	eventID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return command, fmt.Errorf("invalid event id %q: %w", args[0], err)
	}
	command.eventID = uint32(eventID)

	switch name {
	case "create":
		if command.rows, err = strconv.ParseUint(args[1], 10, 64); err != nil {
			return command, fmt.Errorf("invalid rows %q: %w", args[1], err)
		}
		if command.cols, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			return command, fmt.Errorf("invalid cols %q: %w", args[2], err)
		}
	case "reserve":
		command.xs, command.ys, err = parseSeats(args[1:])
		if err != nil {
			return command, err
		}
	}
	return command, nil
}

// parseSeats parses "row,col" pairs.
func parseSeats(args []string) (xs, ys []uint64, err error) {
	for _, arg := range args {
		rowText, colText, found := strings.Cut(arg, ",")
		if !found {
			return nil, nil, fmt.Errorf("invalid seat %q: want row,col", arg)
		}
		row, err := strconv.ParseUint(strings.TrimSpace(rowText), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid seat %q: %w", arg, err)
		}
		col, err := strconv.ParseUint(strings.TrimSpace(colText), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid seat %q: %w", arg, err)
		}
		xs = append(xs, row)
		ys = append(ys, col)
	}
	return xs, ys, nil
}

func runSession(ctx context.Context, opts options, command sessionCommand, stdout io.Writer, logger *slog.Logger) error {
	if opts.serverPipe == "" {
		return errors.New("--server is required for session commands")
	}

	session, err := client.Setup(ctx, opts.requestPipe, opts.responsePipe, opts.serverPipe)
	if err != nil {
		return err
	}
	logger.Debug("session established", "session_id", session.SessionID())

	commandErr := execute(session, command, stdout)
	if err := session.Quit(); err != nil {
		logger.Warn("quit failed", "error", err)
	}
	return commandErr
}

func execute(session *client.Client, command sessionCommand, stdout io.Writer) error {
	switch command.name {
	case "create":
		return session.Create(command.eventID, command.rows, command.cols)
	case "reserve":
		return session.Reserve(command.eventID, command.xs, command.ys)
	case "show":
		grid, err := session.Show(command.eventID)
		if err != nil {
			return err
		}
		writeGrid(stdout, grid)
		return nil
	case "list":
		ids, err := session.List()
		if err != nil {
			return err
		}
		writeList(stdout, ids)
		return nil
	}
	return fmt.Errorf("unknown command %q", command.name)
}

func writeGrid(w io.Writer, grid client.Grid) {
	var line strings.Builder
	for row := range grid.Rows {
		line.Reset()
		for col := range grid.Cols {
			if col > 0 {
				line.WriteByte(' ')
			}
			line.WriteString(strconv.FormatUint(uint64(grid.At(row, col)), 10))
		}
		fmt.Fprintln(w, line.String())
	}
}

func writeList(w io.Writer, ids []uint32) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No events")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "Event: %d\n", id)
	}
}

func runControl(ctx context.Context, opts options, command string, args []string, stdout io.Writer) error {
	if opts.controlSocket == "" {
		return fmt.Errorf("--control-socket is required for %s", command)
	}
	if len(args) != 0 {
		return fmt.Errorf("%s takes no arguments", command)
	}
	controlClient := control.NewClient(opts.controlSocket)

	switch command {
	case "status":
		var status control.StatusResponse
		if err := controlClient.Call(ctx, control.ActionStatus, nil, &status); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "version:         %s\n", status.Version)
		fmt.Fprintf(stdout, "uptime:          %.0fs\n", status.UptimeSeconds)
		fmt.Fprintf(stdout, "workers:         %d\n", status.Workers)
		fmt.Fprintf(stdout, "queue:           %d/%d\n", status.QueueDepth, status.QueueCapacity)
		fmt.Fprintf(stdout, "active sessions: %d\n", status.ActiveSessions)
		fmt.Fprintf(stdout, "sessions served: %d\n", status.SessionsServed)
		fmt.Fprintf(stdout, "events:          %d\n", status.Events)
		fmt.Fprintf(stdout, "snapshots:       %d\n", status.Snapshots)
	case "snapshot":
		var response control.SnapshotResponse
		if err := controlClient.Call(ctx, control.ActionSnapshot, nil, &response); err != nil {
			return err
		}
		if response.Queued {
			fmt.Fprintln(stdout, "snapshot requested")
		}
	}
	return nil
}
