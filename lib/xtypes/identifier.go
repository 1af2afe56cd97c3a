// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// EquivalenceKind distinguishes minimal and complete type descriptions.
type EquivalenceKind uint8

const (
	EquivalenceMinimal  EquivalenceKind = 0xF1
	EquivalenceComplete EquivalenceKind = 0xF2

	// EquivalenceBoth marks a plain collection whose element identifier
	// is the same in both descriptions.
	EquivalenceBoth EquivalenceKind = 0xF3
)

func (kind EquivalenceKind) String() string {
	switch kind {
	case EquivalenceMinimal:
		return "minimal"
	case EquivalenceComplete:
		return "complete"
	case EquivalenceBoth:
		return "both"
	}
	return fmt.Sprintf("EquivalenceKind(%#x)", uint8(kind))
}

// IdentifierKind is the discriminator of a [TypeIdentifier].
type IdentifierKind uint8

const (
	IdentifierNone     IdentifierKind = 0x00
	IdentifierBoolean  IdentifierKind = 0x01
	IdentifierByte     IdentifierKind = 0x02
	IdentifierInt16    IdentifierKind = 0x03
	IdentifierInt32    IdentifierKind = 0x04
	IdentifierInt64    IdentifierKind = 0x05
	IdentifierUint16   IdentifierKind = 0x06
	IdentifierUint32   IdentifierKind = 0x07
	IdentifierUint64   IdentifierKind = 0x08
	IdentifierFloat32  IdentifierKind = 0x09
	IdentifierFloat64  IdentifierKind = 0x0A
	IdentifierFloat128 IdentifierKind = 0x0B
	IdentifierInt8     IdentifierKind = 0x0C
	IdentifierUint8    IdentifierKind = 0x0D
	IdentifierChar8    IdentifierKind = 0x10
	IdentifierChar16   IdentifierKind = 0x11

	IdentifierString8Small  IdentifierKind = 0x70
	IdentifierString8Large  IdentifierKind = 0x71
	IdentifierString16Small IdentifierKind = 0x72
	IdentifierString16Large IdentifierKind = 0x73

	IdentifierPlainSequenceSmall IdentifierKind = 0x80
	IdentifierPlainSequenceLarge IdentifierKind = 0x81
	IdentifierPlainArraySmall    IdentifierKind = 0x90
	IdentifierPlainArrayLarge    IdentifierKind = 0x91
	IdentifierPlainMapSmall      IdentifierKind = 0xA0
	IdentifierPlainMapLarge      IdentifierKind = 0xA1

	IdentifierStronglyConnectedComponent IdentifierKind = 0xB0

	IdentifierMinimal  = IdentifierKind(EquivalenceMinimal)
	IdentifierComplete = IdentifierKind(EquivalenceComplete)
)

var identifierKindNames = map[IdentifierKind]string{
	IdentifierNone:                       "none",
	IdentifierBoolean:                    "boolean",
	IdentifierByte:                       "octet",
	IdentifierInt16:                      "int16",
	IdentifierInt32:                      "int32",
	IdentifierInt64:                      "int64",
	IdentifierUint16:                     "uint16",
	IdentifierUint32:                     "uint32",
	IdentifierUint64:                     "uint64",
	IdentifierFloat32:                    "float32",
	IdentifierFloat64:                    "float64",
	IdentifierFloat128:                   "float128",
	IdentifierInt8:                       "int8",
	IdentifierUint8:                      "uint8",
	IdentifierChar8:                      "char8",
	IdentifierChar16:                     "char16",
	IdentifierString8Small:               "string8-small",
	IdentifierString8Large:               "string8-large",
	IdentifierString16Small:              "string16-small",
	IdentifierString16Large:              "string16-large",
	IdentifierPlainSequenceSmall:         "plain-sequence-small",
	IdentifierPlainSequenceLarge:         "plain-sequence-large",
	IdentifierPlainArraySmall:            "plain-array-small",
	IdentifierPlainArrayLarge:            "plain-array-large",
	IdentifierPlainMapSmall:              "plain-map-small",
	IdentifierPlainMapLarge:              "plain-map-large",
	IdentifierStronglyConnectedComponent: "scc",
	IdentifierMinimal:                    "minimal",
	IdentifierComplete:                   "complete",
}

func (kind IdentifierKind) String() string {
	if name, ok := identifierKindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("IdentifierKind(%#x)", uint8(kind))
}

// IsPrimitive reports whether kind identifies a primitive type (or
// none), whose identifier carries no payload.
func (kind IdentifierKind) IsPrimitive() bool {
	return kind <= IdentifierUint8 || kind == IdentifierChar8 || kind == IdentifierChar16
}

// EquivalenceHash is the first 14 bytes of the MD5 digest of a
// serialized TypeObject, or of a strongly connected component.
type EquivalenceHash [14]byte

func (hash EquivalenceHash) String() string { return hex.EncodeToString(hash[:]) }

// HashOf returns the equivalence hash of serialized TypeObject bytes.
func HashOf(data []byte) EquivalenceHash {
	digest := md5.Sum(data)
	var hash EquivalenceHash
	copy(hash[:], digest[:])
	return hash
}

// NameHash is the first 4 bytes of the MD5 digest of a member name,
// used by minimal TypeObjects in place of names.
type NameHash [4]byte

// NameHashOf returns the name hash of name.
func NameHashOf(name string) NameHash {
	digest := md5.Sum([]byte(name))
	var hash NameHash
	copy(hash[:], digest[:])
	return hash
}

// Collection element flag set on every plain collection element.
const elementFlags = MemberTryConstructDiscard

// TypeIdentifier identifies a type. Primitives, strings, and plain
// collections describe themselves; named types are referenced by the
// hash of their TypeObject, or by a strongly connected component when
// they are part of a reference cycle.
type TypeIdentifier struct {
	Kind IdentifierKind

	// Bound of a string, plain sequence, or plain map. Zero means
	// unbounded.
	Bound uint32

	// Dimensions of a plain array.
	Dimensions []uint32

	// Plain collection header.
	Equivalence  EquivalenceKind
	ElementFlags uint16
	Element      *TypeIdentifier

	// Key of a plain map.
	KeyFlags uint16
	Key      *TypeIdentifier

	// Hash of a hashed identifier, or of the component of a strongly
	// connected component identifier.
	Hash EquivalenceHash

	// Strongly connected component membership: the equivalence kind
	// of the component hash, the number of types in the component, and
	// this type's 1-based position in it.
	ComponentKind   EquivalenceKind
	ComponentLength int32
	ComponentIndex  int32
}

// Primitive returns the identifier of a primitive kind.
func Primitive(kind IdentifierKind) TypeIdentifier {
	return TypeIdentifier{Kind: kind}
}

// StringIdentifier returns the identifier of a string with the given
// bound.
func StringIdentifier(bound uint32) TypeIdentifier {
	if bound < 256 {
		return TypeIdentifier{Kind: IdentifierString8Small, Bound: bound}
	}
	return TypeIdentifier{Kind: IdentifierString8Large, Bound: bound}
}

// HashIdentifier returns a hashed identifier.
func HashIdentifier(kind EquivalenceKind, hash EquivalenceHash) TypeIdentifier {
	return TypeIdentifier{Kind: IdentifierKind(kind), Hash: hash}
}

// ComponentIdentifier returns the identifier of member index (1-based)
// of a strongly connected component of length types.
func ComponentIdentifier(kind EquivalenceKind, hash EquivalenceHash, length, index int32) TypeIdentifier {
	return TypeIdentifier{
		Kind:            IdentifierStronglyConnectedComponent,
		Hash:            hash,
		ComponentKind:   kind,
		ComponentLength: length,
		ComponentIndex:  index,
	}
}

// plainEquivalence returns the collection header kind for an element
// identified by element in a kind description.
func plainEquivalence(element TypeIdentifier, kind EquivalenceKind) EquivalenceKind {
	if element.FullyDescriptive() {
		return EquivalenceBoth
	}
	return kind
}

// SequenceIdentifier returns the plain identifier of a sequence.
func SequenceIdentifier(element TypeIdentifier, bound uint32, kind EquivalenceKind) TypeIdentifier {
	identifierKind := IdentifierPlainSequenceSmall
	if bound >= 256 {
		identifierKind = IdentifierPlainSequenceLarge
	}
	return TypeIdentifier{
		Kind:         identifierKind,
		Bound:        bound,
		Equivalence:  plainEquivalence(element, kind),
		ElementFlags: elementFlags,
		Element:      &element,
	}
}

// ArrayIdentifier returns the plain identifier of an array.
func ArrayIdentifier(element TypeIdentifier, dimensions []uint32, kind EquivalenceKind) TypeIdentifier {
	identifierKind := IdentifierPlainArraySmall
	for _, dimension := range dimensions {
		if dimension >= 256 {
			identifierKind = IdentifierPlainArrayLarge
		}
	}
	return TypeIdentifier{
		Kind:         identifierKind,
		Dimensions:   append([]uint32(nil), dimensions...),
		Equivalence:  plainEquivalence(element, kind),
		ElementFlags: elementFlags,
		Element:      &element,
	}
}

// MapIdentifier returns the plain identifier of a map.
func MapIdentifier(key, element TypeIdentifier, bound uint32, kind EquivalenceKind) TypeIdentifier {
	identifierKind := IdentifierPlainMapSmall
	if bound >= 256 {
		identifierKind = IdentifierPlainMapLarge
	}
	equivalence := plainEquivalence(element, kind)
	if !key.FullyDescriptive() {
		equivalence = kind
	}
	return TypeIdentifier{
		Kind:         identifierKind,
		Bound:        bound,
		Equivalence:  equivalence,
		ElementFlags: elementFlags,
		Element:      &element,
		KeyFlags:     elementFlags,
		Key:          &key,
	}
}

// IsHashed reports whether the identifier refers to a TypeObject by
// hash, directly or through a strongly connected component.
func (id TypeIdentifier) IsHashed() bool {
	return id.Kind == IdentifierMinimal || id.Kind == IdentifierComplete || id.Kind == IdentifierStronglyConnectedComponent
}

// IsPlainCollection reports whether the identifier is a plain sequence,
// array, or map.
func (id TypeIdentifier) IsPlainCollection() bool {
	switch id.Kind {
	case IdentifierPlainSequenceSmall, IdentifierPlainSequenceLarge,
		IdentifierPlainArraySmall, IdentifierPlainArrayLarge,
		IdentifierPlainMapSmall, IdentifierPlainMapLarge:
		return true
	}
	return false
}

// FullyDescriptive reports whether the identifier describes its type
// without reference to any TypeObject.
func (id TypeIdentifier) FullyDescriptive() bool {
	switch {
	case id.Kind.IsPrimitive():
		return true
	case id.Kind >= IdentifierString8Small && id.Kind <= IdentifierString16Large:
		return true
	case id.IsPlainCollection():
		if id.Element == nil || !id.Element.FullyDescriptive() {
			return false
		}
		return id.Key == nil || id.Key.FullyDescriptive()
	}
	return false
}

// EquivalenceKind reports whether the identifier belongs to the
// minimal description, the complete one, or both.
func (id TypeIdentifier) EquivalenceKind() EquivalenceKind {
	switch id.Kind {
	case IdentifierMinimal:
		return EquivalenceMinimal
	case IdentifierComplete:
		return EquivalenceComplete
	case IdentifierStronglyConnectedComponent:
		return id.ComponentKind
	}
	if id.IsPlainCollection() {
		return id.Equivalence
	}
	return EquivalenceBoth
}

// Equal reports whether two identifiers are identical.
func (id TypeIdentifier) Equal(other TypeIdentifier) bool {
	return id.String() == other.String()
}

// String renders the identifier for diagnostics and as a map key. Two
// identifiers render equally exactly when they are identical.
func (id TypeIdentifier) String() string {
	var builder strings.Builder
	id.write(&builder)
	return builder.String()
}

func (id TypeIdentifier) write(builder *strings.Builder) {
	builder.WriteString(id.Kind.String())
	switch {
	case id.Kind.IsPrimitive():
	case id.Kind >= IdentifierString8Small && id.Kind <= IdentifierString16Large:
		fmt.Fprintf(builder, "<%d>", id.Bound)
	case id.IsPlainCollection():
		fmt.Fprintf(builder, "(%s,%#x", id.Equivalence, id.ElementFlags)
		if id.Key != nil {
			fmt.Fprintf(builder, ",key %#x ", id.KeyFlags)
			id.Key.write(builder)
		}
		builder.WriteString(",")
		if id.Element != nil {
			id.Element.write(builder)
		}
		if len(id.Dimensions) > 0 {
			fmt.Fprintf(builder, ",%v", id.Dimensions)
		} else {
			fmt.Fprintf(builder, ",%d", id.Bound)
		}
		builder.WriteString(")")
	case id.Kind == IdentifierStronglyConnectedComponent:
		fmt.Fprintf(builder, "(%s:%s,%d/%d)", id.ComponentKind, id.Hash, id.ComponentIndex, id.ComponentLength)
	case id.IsHashed():
		fmt.Fprintf(builder, ":%s", id.Hash)
	}
}
