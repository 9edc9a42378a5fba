// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive keeps a copy of each snapshot dump on disk.
//
// Every dump becomes one file named snapshot-<unixnano>.txt, with a
// .zst or .lz4 suffix when compressed. Files are written to a
// temporary name, fsynced, and renamed into place, so a reader
// listing the directory never sees a partial snapshot. Each write
// returns the BLAKE3 keyed digest of the uncompressed text; the
// digest is independent of the compression chosen.
package archive
