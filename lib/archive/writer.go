// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/ems/lib/clock"
)

const (
	filePrefix = "snapshot-"
	fileSuffix = ".txt"
)

// Record describes one archived snapshot.
type Record struct {
	Path        string
	Digest      Digest
	Size        int
	StoredSize  int
	Compression Compression
	Time        time.Time
}

// Writer archives snapshots into one directory. It is safe for
// concurrent use.
type Writer struct {
	directory   string
	compression Compression
	clock       clock.Clock

	mu   sync.Mutex
	last int64
}

// NewWriter creates directory if needed and returns a Writer that
// stores files there. A nil clock means clock.Real().
func NewWriter(directory string, compression Compression, clk clock.Clock) (*Writer, error) {
	if directory == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if compression > CompressionLZ4 {
		return nil, fmt.Errorf("unsupported compression: %v", compression)
	}
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Writer{directory: directory, compression: compression, clock: clk}, nil
}

// Directory returns the directory files are written to.
func (w *Writer) Directory() string { return w.directory }

// Write stores text as a new snapshot file.
func (w *Writer) Write(text []byte) (Record, error) {
	now := w.clock.Now()
	stamp := w.nextStamp(now.UnixNano())

	stored, err := compress(text, w.compression)
	if err != nil {
		return Record{}, err
	}

	path := filepath.Join(w.directory, fmt.Sprintf("%s%d%s%s", filePrefix, stamp, fileSuffix, w.compression.Extension()))
	if err := writeAtomic(path, stored); err != nil {
		return Record{}, err
	}

	return Record{
		Path:        path,
		Digest:      HashSnapshot(text),
		Size:        len(text),
		StoredSize:  len(stored),
		Compression: w.compression,
		Time:        now,
	}, nil
}

// nextStamp keeps file names unique when the clock does not advance
// between two snapshots.
func (w *Writer) nextStamp(stamp int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if stamp <= w.last {
		stamp = w.last + 1
	}
	w.last = stamp
	return stamp
}

func writeAtomic(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary snapshot file: %w", err)
	}
	if err := os.Chmod(temporaryPath, 0644); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("setting snapshot file mode: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming snapshot file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// ReadFile returns the uncompressed text of a snapshot file, choosing
// the decoder from the file name.
func ReadFile(path string) ([]byte, error) {
	compression, err := compressionFromName(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	text, err := decompress(data, compression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// List returns the snapshot files in directory, oldest first.
func List(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := compressionFromName(entry.Name()); err == nil {
			paths = append(paths, filepath.Join(directory, entry.Name()))
		}
	}
	// ReadDir sorts by name; stamps share a digit count until 2286.
	return paths, nil
}

func compressionFromName(name string) (Compression, error) {
	if !strings.HasPrefix(name, filePrefix) {
		return 0, fmt.Errorf("%s: not a snapshot file", name)
	}
	switch {
	case strings.HasSuffix(name, fileSuffix):
		return CompressionNone, nil
	case strings.HasSuffix(name, fileSuffix+CompressionZstd.Extension()):
		return CompressionZstd, nil
	case strings.HasSuffix(name, fileSuffix+CompressionLZ4.Extension()):
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("%s: unrecognized snapshot extension", name)
	}
}
