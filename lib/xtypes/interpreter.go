// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

// Objects indexes TypeObjects by the identifier that refers to them.
// It is not safe for concurrent use.
type Objects struct {
	byID map[string]TypeObject
}

// NewObjects returns an empty index.
func NewObjects() *Objects {
	return &Objects{byID: make(map[string]TypeObject)}
}

// Add records object under id.
func (o *Objects) Add(id TypeIdentifier, object TypeObject) {
	o.byID[id.String()] = object
}

// AddMapping records every pair of a mapping.
func (o *Objects) AddMapping(mapping TypeMapping) {
	for _, pair := range mapping.Minimal {
		o.Add(pair.ID, pair.Object)
	}
	for _, pair := range mapping.Complete {
		o.Add(pair.ID, pair.Object)
	}
}

// Lookup returns the object recorded under id.
func (o *Objects) Lookup(id TypeIdentifier) (TypeObject, bool) {
	object, ok := o.byID[id.String()]
	return object, ok
}

// Len returns the number of recorded objects.
func (o *Objects) Len() int { return len(o.byID) }

var identifierPrimitives = map[IdentifierKind]*idl.Type{
	IdentifierBoolean: idl.Bool,
	IdentifierByte:    idl.Byte,
	IdentifierInt8:    idl.Int8,
	IdentifierUint8:   idl.Uint8,
	IdentifierInt16:   idl.Int16,
	IdentifierUint16:  idl.Uint16,
	IdentifierInt32:   idl.Int32,
	IdentifierUint32:  idl.Uint32,
	IdentifierInt64:   idl.Int64,
	IdentifierUint64:  idl.Uint64,
	IdentifierFloat32: idl.Float32,
	IdentifierFloat64: idl.Float64,
	IdentifierChar8:   idl.Char,
}

// Interpret rebuilds the declaration root identifies from complete
// TypeObjects. Every hashed object is checked against its identifier
// before use. When objects lacks some of the TypeObjects needed, the
// error is a *[MissingError] listing all of them; add them and call
// Interpret again.
func Interpret(root TypeIdentifier, objects *Objects) (*idl.Type, error) {
	in := &interpreter{
		objects:   objects,
		resolved:  make(map[string]*idl.Type),
		reentrant: make(map[string]bool),
		waiting:   make(map[string][]func(*idl.Type)),
		verified:  make(map[EquivalenceHash]bool),
		missed:    make(map[string]bool),
	}
	var result *idl.Type
	if err := in.reference(root, func(t *idl.Type) { result = t }); err != nil {
		return nil, err
	}
	if len(in.missing) > 0 {
		return nil, &MissingError{IDs: in.missing}
	}
	if result == nil {
		return nil, malformed("%s did not resolve", root)
	}
	if err := idl.Normalize(result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTypeIdentifier, err)
	}
	return result, nil
}

// interpreter tracks each hashed identifier through three states:
// under construction (reentrant), finished (resolved), and the
// references that arrived while it was under construction (waiting),
// which are patched once it finishes.
type interpreter struct {
	objects   *Objects
	resolved  map[string]*idl.Type
	reentrant map[string]bool
	waiting   map[string][]func(*idl.Type)
	verified  map[EquivalenceHash]bool

	missing []TypeIdentifier
	missed  map[string]bool
}

func (in *interpreter) miss(id TypeIdentifier) {
	key := id.String()
	if !in.missed[key] {
		in.missed[key] = true
		in.missing = append(in.missing, id)
	}
}

// reference resolves id and hands the type to assign, now or once the
// type finishes construction.
func (in *interpreter) reference(id TypeIdentifier, assign func(*idl.Type)) error {
	if primitive, ok := identifierPrimitives[id.Kind]; ok {
		assign(primitive)
		return nil
	}
	switch id.Kind {
	case IdentifierString8Small, IdentifierString8Large:
		assign(idl.String(id.Bound))
		return nil
	case IdentifierPlainSequenceSmall, IdentifierPlainSequenceLarge,
		IdentifierPlainArraySmall, IdentifierPlainArrayLarge,
		IdentifierPlainMapSmall, IdentifierPlainMapLarge:
		return in.collection(id, assign)
	case IdentifierMinimal, IdentifierComplete, IdentifierStronglyConnectedComponent:
		if id.EquivalenceKind() != EquivalenceComplete {
			return malformed("%s is minimal; complete type objects are required", id)
		}
		return in.named(id, assign)
	}
	return malformed("%s has no declaration equivalent", id)
}

func (in *interpreter) collection(id TypeIdentifier, assign func(*idl.Type)) error {
	if id.Element == nil {
		return malformed("%s without element", id.Kind)
	}
	if id.Equivalence == EquivalenceMinimal {
		return malformed("%s is minimal; complete type objects are required", id)
	}
	var collection *idl.Type
	switch id.Kind {
	case IdentifierPlainSequenceSmall, IdentifierPlainSequenceLarge:
		collection = idl.Sequence(nil, id.Bound)
	case IdentifierPlainArraySmall, IdentifierPlainArrayLarge:
		if len(id.Dimensions) == 0 {
			return malformed("array without dimensions")
		}
		collection = idl.Array(nil, append([]uint32(nil), id.Dimensions...)...)
	default:
		if id.Key == nil {
			return malformed("map without key")
		}
		collection = idl.Map(nil, nil, id.Bound)
		if err := in.reference(*id.Key, func(t *idl.Type) { collection.KeyType = t }); err != nil {
			return err
		}
	}
	assign(collection)
	return in.reference(*id.Element, func(t *idl.Type) { collection.Element = t })
}

func (in *interpreter) named(id TypeIdentifier, assign func(*idl.Type)) error {
	key := id.String()
	if t, ok := in.resolved[key]; ok {
		assign(t)
		return nil
	}
	if in.reentrant[key] {
		in.waiting[key] = append(in.waiting[key], assign)
		return nil
	}
	object, ok := in.objects.Lookup(id)
	if !ok {
		in.miss(id)
		if id.Kind == IdentifierStronglyConnectedComponent {
			in.siblings(id)
		}
		return nil
	}
	complete, err := in.verify(id, object)
	if err != nil || !complete {
		return err
	}

	in.reentrant[key] = true
	t, err := in.construct(object)
	delete(in.reentrant, key)
	if err != nil {
		return err
	}
	in.resolved[key] = t
	assign(t)
	for _, patch := range in.waiting[key] {
		patch(t)
	}
	delete(in.waiting, key)
	return nil
}

// siblings returns the objects of id's component in position order,
// recording the absent ones as missing.
func (in *interpreter) siblings(id TypeIdentifier) []TypeObject {
	objects := make([]TypeObject, 0, id.ComponentLength)
	for index := int32(1); index <= id.ComponentLength; index++ {
		sibling := id
		sibling.ComponentIndex = index
		object, ok := in.objects.Lookup(sibling)
		if !ok {
			in.miss(sibling)
			continue
		}
		objects = append(objects, object)
	}
	return objects
}

// verify checks object against the hash in id. It reports false
// without error when the check needs objects that are missing.
func (in *interpreter) verify(id TypeIdentifier, object TypeObject) (bool, error) {
	if object.Equivalence != EquivalenceComplete {
		return false, malformed("object for %s is not complete", id)
	}
	if id.Kind != IdentifierStronglyConnectedComponent {
		data, err := MarshalTypeObject(object)
		if err != nil {
			return false, err
		}
		if HashOf(data) != id.Hash {
			return false, malformed("object for %s hashes to %s", id, HashOf(data))
		}
		return true, nil
	}

	if in.verified[id.Hash] {
		return true, nil
	}
	if id.ComponentLength < 1 || id.ComponentIndex < 1 || id.ComponentIndex > id.ComponentLength {
		return false, malformed("component position %d of %d", id.ComponentIndex, id.ComponentLength)
	}
	objects := in.siblings(id)
	if len(objects) != int(id.ComponentLength) {
		return false, nil
	}
	for index := range objects {
		objects[index] = objects[index].mapIdentifiers(func(reference TypeIdentifier) TypeIdentifier {
			if reference.Kind == IdentifierStronglyConnectedComponent && reference.Hash == id.Hash {
				reference.Hash = EquivalenceHash{}
			}
			return reference
		})
	}
	data, err := marshalTypeObjects(objects)
	if err != nil {
		return false, err
	}
	if HashOf(data) != id.Hash {
		return false, malformed("component %s hashes to %s", id, HashOf(data))
	}
	in.verified[id.Hash] = true
	return true, nil
}

// mapIdentifiers returns a copy of the object with f applied to every
// identifier it contains, including collection elements and keys.
func (object TypeObject) mapIdentifiers(f func(TypeIdentifier) TypeIdentifier) TypeObject {
	var apply func(TypeIdentifier) TypeIdentifier
	apply = func(id TypeIdentifier) TypeIdentifier {
		if id.Element != nil {
			element := apply(*id.Element)
			id.Element = &element
		}
		if id.Key != nil {
			key := apply(*id.Key)
			id.Key = &key
		}
		return f(id)
	}
	object.Base = apply(object.Base)
	object.Discriminator = apply(object.Discriminator)
	object.Related = apply(object.Related)
	members := make([]Member, len(object.Members))
	for index, member := range object.Members {
		member.Type = apply(member.Type)
		members[index] = member
	}
	if object.Members != nil {
		object.Members = members
	}
	return object
}

func extensibilityOf(flags uint16) (idl.Extensibility, error) {
	switch flags & (TypeFinal | TypeAppendable | TypeMutable) {
	case TypeFinal:
		return idl.Final, nil
	case TypeAppendable:
		return idl.Appendable, nil
	case TypeMutable:
		return idl.Mutable, nil
	}
	return 0, malformed("type flags %#x name no single extensibility", flags)
}

func (in *interpreter) construct(object TypeObject) (*idl.Type, error) {
	if object.Name == "" {
		return nil, malformed("complete %s object without a name", object.Kind)
	}
	switch object.Kind {
	case TypeKindStructure:
		extensibility, err := extensibilityOf(object.Flags)
		if err != nil {
			return nil, err
		}
		t := idl.NewStruct(object.Name, extensibility)
		t.Nested = object.Flags&TypeNested != 0
		if object.Flags&TypeAutoIDHash != 0 {
			t.AutoID = idl.AutoIDHash
		}
		t.Members = make([]idl.Member, len(object.Members))
		for index, member := range object.Members {
			key := member.Flags&MemberKey != 0
			t.Members[index] = idl.Member{
				Name:           member.Name,
				ID:             member.ID,
				HasID:          true,
				Key:            key,
				Optional:       member.Flags&MemberOptional != 0,
				MustUnderstand: member.Flags&MemberMustUnderstand != 0 && !key,
			}
			if err := in.reference(member.Type, func(m *idl.Type) { t.Members[index].Type = m }); err != nil {
				return nil, err
			}
		}
		return t, nil
	case TypeKindUnion:
		extensibility, err := extensibilityOf(object.Flags)
		if err != nil {
			return nil, err
		}
		t := idl.NewUnion(object.Name, nil, extensibility)
		t.Nested = object.Flags&TypeNested != 0
		if object.Flags&TypeAutoIDHash != 0 {
			t.AutoID = idl.AutoIDHash
		}
		t.KeyDiscriminator = object.DiscriminatorFlags&MemberKey != 0
		if err := in.reference(object.Discriminator, func(d *idl.Type) { t.Discriminator = d }); err != nil {
			return nil, err
		}
		t.Cases = make([]idl.Case, len(object.Members))
		for index, member := range object.Members {
			unionCase := idl.Case{
				Name:    member.Name,
				ID:      member.ID,
				HasID:   true,
				Default: member.Flags&MemberDefault != 0,
			}
			for _, label := range member.Labels {
				unionCase.Labels = append(unionCase.Labels, int64(label))
			}
			t.Cases[index] = unionCase
			if member.Type.Kind == IdentifierNone {
				continue
			}
			if err := in.reference(member.Type, func(c *idl.Type) { t.Cases[index].Type = c }); err != nil {
				return nil, err
			}
		}
		return t, nil
	case TypeKindEnum:
		t := idl.NewEnum(object.Name)
		t.BitBound = object.BitBound
		for _, literal := range object.Literals {
			t.Literals = append(t.Literals, idl.Literal{
				Name:    literal.Name,
				Value:   literal.Value,
				Default: literal.Flags&MemberDefault != 0,
			})
		}
		return t, nil
	case TypeKindBitmask:
		t := idl.NewBitmask(object.Name, object.BitBound)
		for _, literal := range object.Literals {
			if literal.Value < 0 || literal.Value > 63 {
				return nil, malformed("bitmask %s flag %s at position %d", object.Name, literal.Name, literal.Value)
			}
			t.Flags = append(t.Flags, idl.Flag{Name: literal.Name, Position: uint16(literal.Value)})
		}
		return t, nil
	case TypeKindAlias:
		t := idl.Alias(object.Name, nil)
		if err := in.reference(object.Related, func(related *idl.Type) { t.Element = related }); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, malformed("type kind %s", object.Kind)
}
