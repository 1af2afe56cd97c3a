// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typelookup

import (
	"github.com/bureau-foundation/xcdr/lib/codec"
)

// Action names.
const (
	ActionGetTypeObjects     = "get_type_objects"
	ActionGetTypeIdentifiers = "get_type_identifiers"
	ActionStatus             = "status"
)

// MaxIdentifiersPerRequest bounds get_type_objects requests.
const MaxIdentifiersPerRequest = 256

// Request is the union of every action's fields.
type Request struct {
	Action      string   `cbor:"action"`
	Identifiers [][]byte `cbor:"identifiers,omitempty"`
	Name        string   `cbor:"name,omitempty"`
}

// Response is the envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// TypeObjectEntry pairs a serialized identifier with its serialized
// TypeObject.
type TypeObjectEntry struct {
	Identifier []byte `cbor:"identifier"`
	Object     []byte `cbor:"object"`
}

// TypeObjectsResult answers get_type_objects.
type TypeObjectsResult struct {
	Objects []TypeObjectEntry `cbor:"objects,omitempty"`
	Missing [][]byte          `cbor:"missing,omitempty"`
}

// TypeIdentifiersResult answers get_type_identifiers. Both fields are
// empty when the name is unknown.
type TypeIdentifiersResult struct {
	Minimal  []byte `cbor:"minimal,omitempty"`
	Complete []byte `cbor:"complete,omitempty"`
}

// StatusResult answers status.
type StatusResult struct {
	Objects      int64 `cbor:"objects"`
	Names        int64 `cbor:"names"`
	PayloadBytes int64 `cbor:"payload_bytes"`
	StoredBytes  int64 `cbor:"stored_bytes"`
}
