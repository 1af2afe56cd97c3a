// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package xtypes computes DDS-XTypes type identity for [idl.Type]
// declarations and rebuilds declarations from identity received from
// peers.
//
// Every named type (struct, union, enum, bitmask, typedef) has two
// [TypeObject] descriptions: a complete one carrying names and a
// minimal one carrying only name hashes. A type is identified by the
// first 14 bytes of the MD5 digest of its serialized TypeObject.
// Anonymous types need no object: primitives, strings, and plain
// collections describe themselves inline in a [TypeIdentifier].
//
// Types that refer to each other in a cycle cannot each include the
// others' hashes. [Builder] finds such cycles as strongly connected
// components of the reference graph, hashes each component as a whole,
// and identifies its members by component hash and position.
//
// Identifiers and objects are encoded by lib/cdr as values of a
// self-describing schema, XCDR2 little-endian with no encapsulation
// header. [Interpret] reverses the process: given a root identifier
// and enough complete TypeObjects, it verifies every hash and rebuilds
// the declaration, reporting a [*MissingError] when objects must be
// fetched first.
package xtypes
