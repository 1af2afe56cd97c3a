// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
)

// Kind selects which variant of [Type] a value is.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindUint8
	KindByte
	KindChar
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindStruct
	KindUnion
	KindEnum
	KindBitmask
	KindSequence
	KindArray
	KindOptional
	KindAlias
	KindMap
	KindForward
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindBool:     "boolean",
	KindInt8:     "int8",
	KindUint8:    "uint8",
	KindByte:     "octet",
	KindChar:     "char",
	KindInt16:    "int16",
	KindUint16:   "uint16",
	KindInt32:    "int32",
	KindUint32:   "uint32",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindStruct:   "struct",
	KindUnion:    "union",
	KindEnum:     "enum",
	KindBitmask:  "bitmask",
	KindSequence: "sequence",
	KindArray:    "array",
	KindOptional: "optional",
	KindAlias:    "typedef",
	KindMap:      "map",
	KindForward:  "forward",
}

func (kind Kind) String() string {
	if int(kind) < len(kindNames) {
		return kindNames[kind]
	}
	return fmt.Sprintf("Kind(%d)", uint8(kind))
}

// IsPrimitive reports whether kind is a fixed-size scalar.
func (kind Kind) IsPrimitive() bool {
	return kind >= KindBool && kind <= KindFloat64
}

// Size returns the encoded width of a primitive kind in bytes, or 0
// for other kinds.
func (kind Kind) Size() int {
	switch kind {
	case KindBool, KindInt8, KindUint8, KindByte, KindChar:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	}
	return 0
}

// IsNamed reports whether types of this kind carry a qualified name
// and are identified by hash in the XTypes type system.
func (kind Kind) IsNamed() bool {
	switch kind {
	case KindStruct, KindUnion, KindEnum, KindBitmask, KindAlias:
		return true
	}
	return false
}

// Extensibility governs how a struct or union may evolve while staying
// wire compatible.
type Extensibility uint8

const (
	// Final types never change; members are encoded back to back.
	Final Extensibility = iota

	// Appendable types may gain trailing members. XCDR2 prefixes
	// them with a length header.
	Appendable

	// Mutable types may gain, lose, or reorder members. XCDR2 encodes
	// them as a parameter list of member headers.
	Mutable
)

func (extensibility Extensibility) String() string {
	switch extensibility {
	case Final:
		return "final"
	case Appendable:
		return "appendable"
	case Mutable:
		return "mutable"
	}
	return fmt.Sprintf("Extensibility(%d)", uint8(extensibility))
}

// ParseExtensibility parses the names returned by String.
func ParseExtensibility(name string) (Extensibility, error) {
	switch name {
	case "final", "":
		return Final, nil
	case "appendable":
		return Appendable, nil
	case "mutable":
		return Mutable, nil
	}
	return 0, fmt.Errorf("unknown extensibility %q", name)
}

// AutoID selects how members without an explicit id get one.
type AutoID uint8

const (
	// AutoIDSequential numbers members from the previous id plus one.
	AutoIDSequential AutoID = iota

	// AutoIDHash derives ids from the member name. See [HashMemberID].
	AutoIDHash
)

// Member is one field of a struct.
type Member struct {
	Name string
	Type *Type

	// ID is the member id. When HasID is false, [Normalize] assigns
	// one according to the owning type's AutoID.
	ID    uint32
	HasID bool

	Key            bool
	Optional       bool
	MustUnderstand bool
}

// Case is one branch of a union. A nil Type makes the case void: the
// discriminator alone carries the information.
type Case struct {
	Name    string
	Type    *Type
	Labels  []int64
	Default bool

	ID    uint32
	HasID bool
}

// Literal is one enumerator.
type Literal struct {
	Name  string
	Value int32

	// Default marks the enumerator used for default-initialized values.
	// When no literal is marked, the first one is the default.
	Default bool
}

// Flag is one named bit of a bitmask.
type Flag struct {
	Name     string
	Position uint16
}

// Type describes a data type. Which fields are meaningful depends on
// Kind; the constructors in this package set them consistently.
type Type struct {
	Kind Kind

	// Name is the "::"-separated qualified name of named kinds
	// (struct, union, enum, bitmask, typedef) and forward placeholders.
	Name string

	// Bound is the maximum length of a string, sequence, or map.
	// Zero means unbounded.
	Bound uint32

	// Dimensions lists the fixed extents of an array, outermost first.
	Dimensions []uint32

	// Element is the element type of a sequence, array, or map value,
	// the wrapped type of an optional, and the target of a typedef.
	Element *Type

	// KeyType is the key type of a map.
	KeyType *Type

	Extensibility Extensibility
	AutoID        AutoID

	// Nested marks a struct or union that is never used as a
	// top-level sample type.
	Nested bool

	Members []Member

	Discriminator *Type
	Cases         []Case

	// KeyDiscriminator makes a union's discriminator its only key
	// contribution when the union is reached through a key member.
	KeyDiscriminator bool

	Literals []Literal
	Flags    []Flag

	// BitBound is the declared bit width of an enum or bitmask.
	BitBound uint16

	// target is the type a forward placeholder stands for.
	target *Type

	normalized bool
}

func primitive(kind Kind) *Type { return &Type{Kind: kind} }

// Primitive types. These are shared singletons; never modify them.
var (
	Bool    = primitive(KindBool)
	Int8    = primitive(KindInt8)
	Uint8   = primitive(KindUint8)
	Byte    = primitive(KindByte)
	Char    = primitive(KindChar)
	Int16   = primitive(KindInt16)
	Uint16  = primitive(KindUint16)
	Int32   = primitive(KindInt32)
	Uint32  = primitive(KindUint32)
	Int64   = primitive(KindInt64)
	Uint64  = primitive(KindUint64)
	Float32 = primitive(KindFloat32)
	Float64 = primitive(KindFloat64)
)

// String returns a string type with the given bound (0 for unbounded).
func String(bound uint32) *Type {
	return &Type{Kind: KindString, Bound: bound}
}

// Sequence returns a variable-length collection of element with the
// given bound (0 for unbounded).
func Sequence(element *Type, bound uint32) *Type {
	return &Type{Kind: KindSequence, Element: element, Bound: bound}
}

// Bytes returns a sequence of octets.
func Bytes(bound uint32) *Type {
	return Sequence(Byte, bound)
}

// Array returns a fixed-size collection with one or more dimensions.
func Array(element *Type, dimensions ...uint32) *Type {
	return &Type{Kind: KindArray, Element: element, Dimensions: dimensions}
}

// Map returns an associative collection with the given bound.
func Map(key, value *Type, bound uint32) *Type {
	return &Type{Kind: KindMap, KeyType: key, Element: value, Bound: bound}
}

// Optional marks a member type as possibly absent. It is only valid as
// the type of a struct member.
func Optional(inner *Type) *Type {
	return &Type{Kind: KindOptional, Element: inner}
}

// Alias returns a named typedef of target.
func Alias(name string, target *Type) *Type {
	return &Type{Kind: KindAlias, Name: name, Element: target}
}

// Forward returns an unbound placeholder for a named type. Bind it
// with [Type.Bind] or through [Namespace.Resolve] before normalizing.
func Forward(name string) *Type {
	return &Type{Kind: KindForward, Name: name}
}

// NewStruct declares a named struct with no members. Attach members
// with [Type.SetMembers], which may refer to the struct itself.
func NewStruct(name string, extensibility Extensibility) *Type {
	return &Type{Kind: KindStruct, Name: name, Extensibility: extensibility}
}

// NewUnion declares a named union over discriminator with no cases.
// Attach cases with [Type.SetCases].
func NewUnion(name string, discriminator *Type, extensibility Extensibility) *Type {
	return &Type{Kind: KindUnion, Name: name, Discriminator: discriminator, Extensibility: extensibility}
}

// NewEnum returns an enum whose enumerators take the values 0, 1, 2...
// in the order given.
func NewEnum(name string, literals ...string) *Type {
	enum := &Type{Kind: KindEnum, Name: name, BitBound: 32}
	for index, literal := range literals {
		enum.Literals = append(enum.Literals, Literal{Name: literal, Value: int32(index)})
	}
	return enum
}

// NewBitmask returns a bitmask whose flags take bit positions 0, 1,
// 2... in the order given.
func NewBitmask(name string, bitBound uint16, flags ...string) *Type {
	bitmask := &Type{Kind: KindBitmask, Name: name, BitBound: bitBound}
	for index, flag := range flags {
		bitmask.Flags = append(bitmask.Flags, Flag{Name: flag, Position: uint16(index)})
	}
	return bitmask
}

// SetMembers replaces the members of a struct and returns it.
func (t *Type) SetMembers(members ...Member) *Type {
	t.Members = members
	return t
}

// SetCases replaces the cases of a union and returns it.
func (t *Type) SetCases(cases ...Case) *Type {
	t.Cases = cases
	return t
}

// Bind points a forward placeholder at its target.
func (t *Type) Bind(target *Type) {
	if t.Kind != KindForward {
		panic(fmt.Sprintf("idl: Bind called on %s type %q", t.Kind, t.Name))
	}
	t.target = target
}

// Target returns what a bound forward placeholder stands for, or nil.
func (t *Type) Target() *Type { return t.target }

// Underlying follows typedef chains to the first non-alias type.
func (t *Type) Underlying() *Type {
	for t != nil && t.Kind == KindAlias {
		t = t.Element
	}
	return t
}

// KeyMembers returns the members declared as keys, in declaration
// order.
func (t *Type) KeyMembers() []Member {
	var keys []Member
	for _, member := range t.Members {
		if member.Key {
			keys = append(keys, member)
		}
	}
	return keys
}

// MemberByName returns the struct member with the given name.
func (t *Type) MemberByName(name string) (Member, bool) {
	for _, member := range t.Members {
		if member.Name == name {
			return member, true
		}
	}
	return Member{}, false
}

// DefaultLiteral returns the enumerator a default-initialized enum
// takes.
func (t *Type) DefaultLiteral() Literal {
	for _, literal := range t.Literals {
		if literal.Default {
			return literal
		}
	}
	if len(t.Literals) > 0 {
		return t.Literals[0]
	}
	return Literal{}
}

// SelectCase returns the index of the union case that discriminator
// selects: the case listing it as a label, else the default case, else
// -1.
func (t *Type) SelectCase(discriminator int64) int {
	defaultIndex := -1
	for index, unionCase := range t.Cases {
		for _, label := range unionCase.Labels {
			if label == discriminator {
				return index
			}
		}
		if unionCase.Default {
			defaultIndex = index
		}
	}
	return defaultIndex
}

// ImplicitDefault returns a discriminator value that no case label
// claims, used when default-initializing a union through its default
// case. Enum discriminators pick the lowest unclaimed literal value;
// other kinds pick the lowest unclaimed non-negative value, then the
// highest unclaimed negative one. The result is false when every value
// of the discriminator type is claimed.
func (t *Type) ImplicitDefault() (int64, bool) {
	used := make(map[int64]bool)
	for _, unionCase := range t.Cases {
		for _, label := range unionCase.Labels {
			used[label] = true
		}
	}

	discriminator := t.Discriminator.Underlying()
	if discriminator != nil && discriminator.Kind == KindEnum {
		found := false
		var lowest int64
		for _, literal := range discriminator.Literals {
			value := int64(literal.Value)
			if used[value] || (found && value >= lowest) {
				continue
			}
			lowest, found = value, true
		}
		return lowest, found
	}

	low, high := discriminatorRange(discriminator)
	for value := max(low, 0); value <= high; value++ {
		if !used[value] {
			return value, true
		}
		if value == high {
			break
		}
	}
	for value := int64(-1); value >= low; value-- {
		if !used[value] {
			return value, true
		}
		if value == low {
			break
		}
	}
	return 0, false
}

// discriminatorRange returns the values a discriminator kind can hold.
// Labels never exceed the int64 range, so 64-bit unsigned kinds share
// the int64 upper bound.
func discriminatorRange(discriminator *Type) (low, high int64) {
	if discriminator == nil {
		return math.MinInt64, math.MaxInt64
	}
	switch discriminator.Kind {
	case KindBool:
		return 0, 1
	case KindInt8:
		return math.MinInt8, math.MaxInt8
	case KindUint8, KindByte, KindChar:
		return 0, math.MaxUint8
	case KindInt16:
		return math.MinInt16, math.MaxInt16
	case KindUint16:
		return 0, math.MaxUint16
	case KindInt32:
		return math.MinInt32, math.MaxInt32
	case KindUint32:
		return 0, math.MaxUint32
	case KindUint64:
		return 0, math.MaxInt64
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// HashMemberID derives a member id from a member name: the first four
// bytes of MD5(name) read little-endian, masked to 28 bits.
func HashMemberID(name string) uint32 {
	digest := md5.Sum([]byte(name))
	return binary.LittleEndian.Uint32(digest[:4]) & 0x0FFFFFFF
}
