// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash of snapshot text.
type Digest [32]byte

// snapshotDomainKey is "ems.snapshot" zero-padded to 32 bytes.
var snapshotDomainKey = [32]byte{
	'e', 'm', 's', '.', 's', 'n', 'a', 'p', 's', 'h', 'o', 't',
}

// HashSnapshot returns the digest of uncompressed snapshot text.
func HashSnapshot(text []byte) Digest {
	hasher, err := blake3.NewKeyed(snapshotDomainKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(text)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses the hex form produced by String.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("parsing digest: got %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}
