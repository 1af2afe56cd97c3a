// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package idlschema loads type declarations from schema files and
// builds the corresponding [idl.Type] graphs.
//
// Schema files are YAML (.yaml, .yml) or JSONC (.json, .jsonc; JSON
// extended with comments and trailing commas). Both formats share one
// document model:
//
//	module: fleet
//	types:
//	  - struct: Vehicle
//	    extensibility: appendable
//	    members:
//	      - {name: id, type: "string<32>", key: true}
//	      - {name: status, type: Status}
//	      - {name: route, type: "sequence<Waypoint, 64>"}
//	  - enum: Status
//	    literals: [{name: idle}, {name: moving}]
//
// Member, case, discriminator, and typedef types are written as type
// expressions: primitive names (int32, octet, float64, ...), string
// and string<N>, sequence<T> and sequence<T, N>, array<T, D1, D2...>,
// map<K, V> and map<K, V, N>, optional<T>, and names of declared types.
// Unqualified names are looked up in the enclosing module first, then
// at the top level.
//
// Loading is two-phase: a [Loader] first declares every named type
// from every file, then resolves type expressions against the complete
// set. Declarations may therefore refer to types declared later or in
// another file, including themselves.
package idlschema
