// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typelib stores TypeObjects in a SQLite database, keyed by the
// serialized TypeIdentifier that refers to them.
//
// A Library is the persistent side of type resolution: a process that
// declares types records their TypeMapping with [Library.PutMapping],
// and a resolver anywhere on the host reads them back through
// [Library.Fetch], directly or through the lookup socket.
//
// Object payloads are the XCDR2 TypeObject bytes. Each row carries a
// keyed BLAKE3 checksum of the uncompressed payload and the payload
// itself, compressed with zstd or LZ4 when that makes it smaller.
// Reads verify the checksum before decoding. Hashed identifiers are
// also checked against the payload on write, so the store never holds
// an object its identifier does not describe.
//
// Named types are indexed separately: [Library.PutTypeHash] records
// the minimal and complete identifiers of a qualified name so that
// [Library.Identifiers] can answer "what is the identity of
// fleet::Vehicle" without the declaration.
package typelib
