// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer provides the alignment-aware byte store used by the
// CDR and XCDR2 codecs.
//
// A [Buffer] owns a growable byte slice, a cursor, an alignment origin,
// a maximum alignment, and a byte order. Every primitive write or read
// first advances the cursor to the next multiple of
// min(natural alignment, maximum alignment), measured from the origin.
// The origin exists because the 4-byte encapsulation header shifts all
// payload alignment by four: the codec writes the header, then calls
// [Buffer.SetOrigin] with the current position.
//
// Basic CDR uses a maximum alignment of 8; XCDR2 uses 4.
//
// Padding bytes are always zero, including when a Buffer is reused
// after [Buffer.Reset]. Writes past the current capacity reallocate the
// underlying array (doubling), so slices returned by [Buffer.Bytes] are
// only valid until the next write.
//
// Reads past the end of the written data return io.ErrUnexpectedEOF.
//
// This package has no dependencies on other packages in this module.
package buffer
