// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typelookup serves a type library over a Unix socket and
// provides the matching client.
//
// The protocol is one CBOR request and one CBOR response per
// connection. Every request carries an "action" field:
//
//   - get_type_objects: "identifiers" holds serialized TypeIdentifiers.
//     The response lists each found identifier with its serialized
//     TypeObject, and the identifiers the library does not hold.
//   - get_type_identifiers: "name" holds a qualified type name. The
//     response holds its minimal and complete identifiers.
//   - status: the response summarizes the library contents.
//
// Responses are {ok, error, data} envelopes. Identifiers and objects
// travel as their XCDR2 bytes, so the socket carries exactly what a
// transport would put on the wire.
//
// [Client] implements typeresolve.Fetcher, so a resolver in any local
// process can pull TypeObjects from the daemon that owns the library.
package typelookup
