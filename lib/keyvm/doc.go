// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyvm defines a small bytecode for extracting the key of a
// sample directly from its XCDR2 serialization, and an interpreter for
// it.
//
// A runtime that moves serialized samples around (and never decodes
// them) still needs each sample's key to tell instances apart. The
// codec in lib/cdr compiles a [Program] per type; any runtime can run
// it over the wire bytes with [Run] and obtain exactly the bytes the
// codec's Key method would produce: the key members, big-endian, with
// XCDR2 alignment (at most 4) and no framing.
//
// A program is a flat list of [Op]. Control flow uses relative jumps
// counted in instructions, not bytes. Brackets must nest:
//
//   - RepeatStatic and Repeat4ByteSize close with EndRepeat
//   - StructHeader and AppendableHeader close with AppendableJumpToEnd
//   - MemberSelect closes with MemberSelectEnd
//   - a Union op is followed by its case table (CaseLabel and
//     CaseDefault entries) and its Jump lands after the last case body
//   - Optional's Jump lands after the guarded body
//
// [Validate] checks these rules. Run validates before executing.
//
// Every op carries a Skip flag. Skipped ops consume input (so that later
// members can be found) without producing output; this is how non-key
// members are stepped over in final and appendable types.
package keyvm
