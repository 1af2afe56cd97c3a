// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cdr encodes dynamic values of [idl.Type] declarations in basic
// CDR and XCDR2, and derives their keys.
//
// A [Codec] compiles a type graph into two trees of machines, one per
// encoding. Each machine knows how to serialize, deserialize, and
// default one node of the graph, how big the node's key form can get,
// and how to emit the key program fragment (see lib/keyvm) that finds
// its key bytes inside an XCDR2 encoding. The trees are built on first
// use and never change afterwards.
//
// Values are dynamic Go values:
//
//   - structs are [idl.Struct] keyed by member name
//   - unions are [idl.Union]
//   - enums are int32 and bitmasks are uint64
//   - an absent optional member is nil
//   - sequences and arrays of primitives are typed slices ([]byte,
//     []int32, ...), other sequences and arrays are []any, nested once
//     per array dimension
//   - maps are map[any]any
//
// Basic CDR cannot express optional members, mutable types, or nested
// appendable types; [Codec.SupportsBasic] reports whether the type
// avoids all three. VersionAuto picks basic CDR for such types and
// XCDR2 for the rest.
//
// The key of a value is its key members serialized big-endian in XCDR2
// with no framing. [Codec.KeyHash] pads keys that always fit in 16
// bytes and digests the rest with MD5. [Codec.KeySize] classifies the
// key form as fixed, bounded, or unbounded.
//
// Errors are returned, never raised: encoding failures wrap
// [ErrBoundViolation] or [ErrInvalidValue], decoding failures wrap
// [ErrStructuralCorruption] or [ErrMustUnderstand], and a request for an
// encoding the type cannot use wraps [ErrUnsupportedEncoding].
package cdr
