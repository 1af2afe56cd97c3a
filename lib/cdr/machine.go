// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"github.com/bureau-foundation/xcdr/lib/buffer"
)

// machine encodes and decodes one node of a type graph in one
// encoding. Each type gets two machine trees, one for basic CDR and
// one for XCDR2; see builder.go.
type machine interface {
	// serialize writes value. With forKey set it writes the key form:
	// only key members, no length headers, member headers, or
	// presence flags.
	serialize(buffer *buffer.Buffer, value any, forKey bool) error

	deserialize(buffer *buffer.Buffer) (any, error)

	defaultValue() any

	// keyScan extends the key size accumulated so far by this
	// machine's key form.
	keyScan(scanner *keyScanner, size KeySize) KeySize

	// keyOps emits the key program fragment that walks this machine's
	// XCDR2 encoding. With skip set the fragment consumes input
	// without producing key bytes.
	keyOps(compiler *keyCompiler, skip bool) error
}

// fixedSizer is implemented by machines whose encoding always has the
// same width. Mutable member headers use the width as length code.
type fixedSizer interface {
	fixedSize() int
}

// discriminatorMachine is a machine usable as a union discriminator.
type discriminatorMachine interface {
	machine
	fixedSizer

	// signed reports whether the wire value sign-extends.
	signed() bool

	// toDiscriminator converts a decoded value to the int64 form held
	// by idl.Union.
	toDiscriminator(value any) (int64, error)

	// fromDiscriminator converts the int64 form to the Go value the
	// machine serializes.
	fromDiscriminator(discriminator int64) any
}

// isPrimitiveLike reports whether collections of m's values are
// encoded without a DHEADER in XCDR2.
func isPrimitiveLike(m machine) bool {
	switch m.(type) {
	case *enumMachine, *bitmaskMachine, scalarKind:
		return true
	}
	return false
}

// scalarKind is implemented by the primitive machines.
type scalarKind interface {
	scalar()
}
