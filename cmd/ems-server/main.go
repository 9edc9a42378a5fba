// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Ems-server is the event management server. It listens for client
// registrations on a named pipe, serves each session on a worker from
// a fixed pool, and prints every event's seat map on SIGUSR1.
//
// Usage:
//
//	ems-server [flags] <pipe_path> [delay_us]
//
// delay_us is an artificial delay, in microseconds, applied to every
// event store operation. SIGINT or SIGTERM shuts the server down and
// removes the registration pipe.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ems/lib/archive"
	"github.com/bureau-foundation/ems/lib/clock"
	"github.com/bureau-foundation/ems/lib/config"
	"github.com/bureau-foundation/ems/lib/eventstore"
	"github.com/bureau-foundation/ems/lib/process"
	"github.com/bureau-foundation/ems/lib/version"
	"github.com/bureau-foundation/ems/server"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("ems-server")
		return nil
	}

	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, os.Stdout)
}

// serve wires the store, archive, and server from cfg and runs until
// ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, dumpOutput io.Writer) error {
	realClock := clock.Real()

	store, err := eventstore.New(eventstore.Options{
		AccessDelay:        cfg.AccessDelay,
		MaxReservationSize: cfg.MaxReservationSize,
		Clock:              realClock,
	})
	if err != nil {
		return fmt.Errorf("initializing event store: %w", err)
	}

	var archiveWriter *archive.Writer
	if cfg.Snapshot.ArchiveDir != "" {
		if err := cfg.EnsurePaths(); err != nil {
			return err
		}
		compression, err := archive.ParseCompression(cfg.Snapshot.Compression)
		if err != nil {
			return err
		}
		archiveWriter, err = archive.NewWriter(cfg.Snapshot.ArchiveDir, compression, realClock)
		if err != nil {
			return err
		}
	}

	instance, err := server.New(server.Options{
		RegistrationPipe:   cfg.RegistrationPipe,
		Workers:            cfg.Workers,
		QueueCapacity:      cfg.QueueCapacity,
		MaxReservationSize: cfg.MaxReservationSize,
		SessionIDs:         cfg.SessionIDs,
		Store:              store,
		DumpOutput:         dumpOutput,
		Archive:            archiveWriter,
		ControlSocket:      cfg.Control.SocketPath,
		HandleSignals:      true,
		Logger:             logger,
		Clock:              realClock,
	})
	if err != nil {
		return err
	}

	logger.Info("ems-server starting", "version", version.Info(), "access_delay", cfg.AccessDelay)
	return instance.Serve(ctx)
}

// parseArgs builds the configuration from the config file (--config,
// then EMS_CONFIG, then defaults), flags, and positional arguments, in
// increasing precedence.
func parseArgs(args []string, output io.Writer) (*config.Config, error) {
	var (
		configPath    string
		workers       int
		queueCapacity int
		maxSeats      int
		sessionIDs    string
		logLevel      string
		archiveDir    string
		compression   string
		controlSocket string
	)

	flagSet := pflag.NewFlagSet("ems-server", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML or JSONC config file (default: $"+config.EnvironmentVariable+")")
	flagSet.IntVar(&workers, "workers", 0, "number of session workers")
	flagSet.IntVar(&queueCapacity, "queue-capacity", 0, "registrations that may wait for a worker")
	flagSet.IntVar(&maxSeats, "max-reservation-size", 0, "maximum seats in one reservation")
	flagSet.StringVar(&sessionIDs, "session-ids", "", "session id policy: slot or sequence")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&archiveDir, "archive-dir", "", "also write each snapshot to this directory")
	flagSet.StringVar(&compression, "compression", "", "snapshot archive compression: none, zstd, or lz4")
	flagSet.StringVar(&controlSocket, "control-socket", "", "serve the control protocol on this Unix socket")
	flagSet.Usage = func() {
		fmt.Fprintf(output, "Usage:\n  ems-server [flags] <pipe_path> [delay_us]\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("workers") {
		cfg.Workers = workers
	}
	if flagSet.Changed("queue-capacity") {
		cfg.QueueCapacity = queueCapacity
	}
	if flagSet.Changed("max-reservation-size") {
		cfg.MaxReservationSize = maxSeats
	}
	if flagSet.Changed("session-ids") {
		cfg.SessionIDs = config.SessionIDPolicy(sessionIDs)
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("archive-dir") {
		cfg.Snapshot.ArchiveDir = archiveDir
	}
	if flagSet.Changed("compression") {
		cfg.Snapshot.Compression = compression
	}
	if flagSet.Changed("control-socket") {
		cfg.Control.SocketPath = controlSocket
	}

	positional := flagSet.Args()
	if len(positional) > 2 {
		return nil, fmt.Errorf("unexpected argument %q\nusage: ems-server [flags] <pipe_path> [delay_us]", positional[2])
	}
	if len(positional) >= 1 {
		cfg.RegistrationPipe = positional[0]
	}
	if len(positional) == 2 {
		delay, err := strconv.ParseUint(positional[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid delay_us %q: %w", positional[1], err)
		}
		cfg.AccessDelay = time.Duration(delay) * time.Microsecond
	}
	if cfg.RegistrationPipe == "" {
		return nil, errors.New("missing pipe path\nusage: ems-server [flags] <pipe_path> [delay_us]")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
