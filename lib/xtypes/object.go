// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import "fmt"

// TypeKind is the kind of a named type described by a [TypeObject].
type TypeKind uint8

const (
	TypeKindAlias     TypeKind = 0x30
	TypeKindEnum      TypeKind = 0x40
	TypeKindBitmask   TypeKind = 0x41
	TypeKindStructure TypeKind = 0x51
	TypeKindUnion     TypeKind = 0x52
)

func (kind TypeKind) String() string {
	switch kind {
	case TypeKindAlias:
		return "alias"
	case TypeKindEnum:
		return "enum"
	case TypeKindBitmask:
		return "bitmask"
	case TypeKindStructure:
		return "struct"
	case TypeKindUnion:
		return "union"
	}
	return fmt.Sprintf("TypeKind(%#x)", uint8(kind))
}

// Type flags of structs and unions.
const (
	TypeFinal      uint16 = 1 << 0
	TypeAppendable uint16 = 1 << 1
	TypeMutable    uint16 = 1 << 2
	TypeNested     uint16 = 1 << 3
	TypeAutoIDHash uint16 = 1 << 4
)

// Member flags of struct members, union cases, discriminators, and
// collection elements.
const (
	MemberTryConstructDiscard uint16 = 1 << 0
	MemberTryConstructDefault uint16 = 1 << 1
	MemberExternal            uint16 = 1 << 2
	MemberOptional            uint16 = 1 << 3
	MemberMustUnderstand      uint16 = 1 << 4
	MemberKey                 uint16 = 1 << 5
	MemberDefault             uint16 = 1 << 6
)

// TypeObject describes one named type, in either the minimal or the
// complete form. Complete objects carry names; minimal objects carry
// name hashes instead and are enough to check assignability, not to
// rebuild a declaration.
type TypeObject struct {
	Equivalence EquivalenceKind
	Kind        TypeKind

	// Flags holds the type flags of a struct or union.
	Flags uint16

	// Name is the qualified type name of a complete object.
	Name string

	// Base is the base type of a struct; always none here.
	Base TypeIdentifier

	// Members are the members of a struct or the cases of a union.
	Members []Member

	DiscriminatorFlags uint16
	Discriminator      TypeIdentifier

	// BitBound and Literals describe an enum or a bitmask. Bitmask
	// literals hold the bit position as Value.
	BitBound uint16
	Literals []Literal

	// RelatedFlags and Related describe the target of an alias.
	RelatedFlags uint16
	Related      TypeIdentifier
}

// Member is one struct member or union case of a TypeObject.
type Member struct {
	ID    uint32
	Flags uint16
	Type  TypeIdentifier

	// Labels are the case labels of a union case.
	Labels []int32

	Name     string
	NameHash NameHash
}

// Literal is one enumerator or bitmask flag of a TypeObject.
type Literal struct {
	Value    int32
	Flags    uint16
	Name     string
	NameHash NameHash
}

// References returns every identifier the object mentions, in
// declaration order.
func (object TypeObject) References() []TypeIdentifier {
	var references []TypeIdentifier
	switch object.Kind {
	case TypeKindStructure:
		for _, member := range object.Members {
			references = append(references, member.Type)
		}
	case TypeKindUnion:
		references = append(references, object.Discriminator)
		for _, member := range object.Members {
			references = append(references, member.Type)
		}
	case TypeKindAlias:
		references = append(references, object.Related)
	}
	return references
}

// TypeIdentifierWithSize pairs an identifier with the length of its
// serialized TypeObject.
type TypeIdentifierWithSize struct {
	ID             TypeIdentifier
	SerializedSize uint32
}

// TypeIdentifierWithDependencies lists a type and the hashed types it
// depends on.
type TypeIdentifierWithDependencies struct {
	Type TypeIdentifierWithSize

	// DependentCount is the total number of dependencies, which may
	// exceed len(Dependencies) when the list is truncated.
	DependentCount int32
	Dependencies   []TypeIdentifierWithSize
}

// TypeInformation is announced in discovery so that peers can tell
// whether they already know a type.
type TypeInformation struct {
	Minimal  TypeIdentifierWithDependencies
	Complete TypeIdentifierWithDependencies
}

// TypeIdentifierTypeObjectPair associates an identifier with the object
// it hashes.
type TypeIdentifierTypeObjectPair struct {
	ID     TypeIdentifier
	Object TypeObject
}

// TypeIdentifierPair associates two identifiers of the same type.
type TypeIdentifierPair struct {
	First  TypeIdentifier
	Second TypeIdentifier
}

// TypeMapping carries every TypeObject of a type and its dependencies.
type TypeMapping struct {
	Minimal  []TypeIdentifierTypeObjectPair
	Complete []TypeIdentifierTypeObjectPair

	// CompleteToMinimal pairs each complete identifier with the
	// minimal identifier of the same type.
	CompleteToMinimal []TypeIdentifierPair
}
