// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by the type lookup
// protocol.
//
// Requests and responses on the lookup socket are CBOR. Type objects
// inside them travel as opaque XCDR2 byte strings, so CBOR only frames
// the envelope. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2) so a given envelope always produces the same bytes.
//
//	data, err := codec.Marshal(request)
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(io.LimitReader(conn, limit))
//
// Types that only ever travel as CBOR carry `cbor` struct tags.
package codec
