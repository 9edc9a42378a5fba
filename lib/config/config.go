// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "EMS_CONFIG"

// SessionIDPolicy selects how the server numbers sessions.
type SessionIDPolicy string

const (
	// SessionIDSlot reuses the serving worker's slot index. Ids are
	// stable per worker and repeat across the server's lifetime.
	SessionIDSlot SessionIDPolicy = "slot"

	// SessionIDSequence hands out a process-wide increasing counter,
	// unique for the lifetime of the server.
	SessionIDSequence SessionIDPolicy = "sequence"
)

// Config is the ems-server configuration.
type Config struct {
	// RegistrationPipe is the path of the well-known FIFO clients
	// register on. Usually given as the first positional argument.
	RegistrationPipe string `yaml:"registration_pipe"`

	// AccessDelay is slept before every EventStore operation. Zero
	// disables it. Accepts Go duration strings ("250us", "10ms").
	AccessDelay time.Duration `yaml:"access_delay"`

	// Workers is the fixed number of session workers.
	Workers int `yaml:"workers"`

	// QueueCapacity is the number of registrations that may wait for
	// a free worker before the accept loop blocks.
	QueueCapacity int `yaml:"queue_capacity"`

	// MaxReservationSize caps the seats in a single RESERVE request.
	MaxReservationSize int `yaml:"max_reservation_size"`

	// SessionIDs is "slot" or "sequence".
	SessionIDs SessionIDPolicy `yaml:"session_ids"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Snapshot configures SIGUSR1 dumps.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Control configures the optional control socket.
	Control ControlConfig `yaml:"control"`
}

// SnapshotConfig configures where snapshot dumps go besides stdout.
type SnapshotConfig struct {
	// ArchiveDir, when set, receives one file per dump.
	ArchiveDir string `yaml:"archive_dir"`

	// Compression is none, zstd, or lz4.
	Compression string `yaml:"compression"`
}

// ControlConfig configures the CBOR control socket.
type ControlConfig struct {
	// SocketPath is the Unix socket to listen on. Empty disables the
	// control socket.
	SocketPath string `yaml:"socket_path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:            20,
		QueueCapacity:      16,
		MaxReservationSize: 256,
		SessionIDs:         SessionIDSlot,
		LogLevel:           "info",
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
	}
}

// Load loads the file named by EMS_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your ems config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile overlays the file at path onto Default and expands ${VAR}
// references in path-valued fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.RegistrationPipe = expandVars(c.RegistrationPipe, vars)
	c.Snapshot.ArchiveDir = expandVars(c.Snapshot.ArchiveDir, vars)
	c.Control.SocketPath = expandVars(c.Control.SocketPath, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.RegistrationPipe == "" {
		errs = append(errs, fmt.Errorf("registration_pipe is required"))
	}
	if c.AccessDelay < 0 {
		errs = append(errs, fmt.Errorf("access_delay must not be negative, got %v", c.AccessDelay))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity))
	}
	if c.MaxReservationSize < 1 {
		errs = append(errs, fmt.Errorf("max_reservation_size must be at least 1, got %d", c.MaxReservationSize))
	}
	if c.SessionIDs != SessionIDSlot && c.SessionIDs != SessionIDSequence {
		errs = append(errs, fmt.Errorf("session_ids must be %q or %q, got %q", SessionIDSlot, SessionIDSequence, c.SessionIDs))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	compressions := []string{"none", "zstd", "lz4"}
	if !contains(compressions, c.Snapshot.Compression) {
		errs = append(errs, fmt.Errorf("snapshot.compression must be one of: %v", compressions))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the snapshot archive directory if one is set.
func (c *Config) EnsurePaths() error {
	if c.Snapshot.ArchiveDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Snapshot.ArchiveDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Snapshot.ArchiveDir, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
