// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package idl describes user data types in the shape of the OMG IDL
// type system, and defines the dynamic Go values that instances of
// those types take.
//
// A [Type] is a tagged variant selected by its [Kind]. Primitive types
// are package-level singletons ([Int32], [Float64], ...). Composite
// types are built with constructors ([String], [Sequence], [Array],
// [Map], [Optional], [Alias]) or, for named aggregates, with two-phase
// construction:
//
//	node := idl.NewStruct("demo::Node", idl.Final)
//	node.SetMembers(
//		idl.Member{Name: "value", Type: idl.Int32, Key: true},
//		idl.Member{Name: "next", Type: idl.Optional(node)},
//	)
//
// Declaring the name first lets a struct refer to itself. Mutually
// recursive groups declared in any order use [Forward] placeholders,
// bound through a [Namespace]:
//
//	namespace := idl.NewNamespace()
//	a := idl.NewStruct("A", idl.Final)
//	a.SetMembers(idl.Member{Name: "b", Type: idl.Optional(namespace.Forward("B"))})
//	b := idl.NewStruct("B", idl.Final)
//	b.SetMembers(idl.Member{Name: "a", Type: idl.Optional(a)})
//	namespace.Declare(a, b)
//	err := namespace.Resolve()
//
// [Normalize] turns a declared graph into the canonical form every
// consumer in this module expects: forward placeholders replaced by
// their targets, optional wrappers folded into member flags, member ids
// assigned, and the whole graph validated. It runs once per type.
//
// # Values
//
// Instances are dynamic Go values:
//
//   - bool, int8, uint8 (also Byte and Char), int16, uint16, int32,
//     uint32, int64, uint64, float32, float64 for primitives
//   - string for strings
//   - int32 for enums (unknown enumerator values are preserved)
//   - uint64 for bitmasks
//   - [Struct] for structs, keyed by member name
//   - [Union] for unions
//   - nil for an absent optional member
//   - typed slices ([]byte, []int32, ...) for sequences and arrays of
//     primitives, []any otherwise; multi-dimensional arrays nest
//   - map[any]any for maps
//
// [Equal] compares two values structurally.
package idl
