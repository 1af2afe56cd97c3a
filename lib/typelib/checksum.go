// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelib

import (
	"github.com/zeebo/blake3"
)

// Checksum is a keyed BLAKE3 digest of an uncompressed payload.
type Checksum [32]byte

// checksumKey separates payload checksums from any other BLAKE3 use.
// It is the ASCII domain name, zero-padded to 32 bytes.
var checksumKey = [32]byte{
	'x', 'c', 'd', 'r', '.', 't', 'y', 'p', 'e', 'l', 'i', 'b', '.',
	'o', 'b', 'j', 'e', 'c', 't',
}

func checksumOf(payload []byte) Checksum {
	hasher, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("typelib: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var sum Checksum
	copy(sum[:], hasher.Sum(nil))
	return sum
}
