// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"github.com/bureau-foundation/xcdr/lib/idl"
)

// valueWriter turns model types into dynamic values of the schema
// declarations. The first failure sticks in err.
type valueWriter struct {
	err error
}

func (w *valueWriter) fail(format string, args ...any) {
	if w.err == nil {
		w.err = malformed(format, args...)
	}
}

func (w *valueWriter) smallBound(bound uint32, what string) uint8 {
	if bound > 255 {
		w.fail("%s bound %d does not fit the small form", what, bound)
	}
	return uint8(bound)
}

func (w *valueWriter) identifier(id TypeIdentifier) idl.Union {
	union := idl.Union{Discriminator: int64(id.Kind)}
	switch id.Kind {
	case IdentifierString8Small, IdentifierString16Small:
		union.Value = idl.Struct{"bound": w.smallBound(id.Bound, "string")}
	case IdentifierString8Large, IdentifierString16Large:
		union.Value = idl.Struct{"bound": id.Bound}
	case IdentifierPlainSequenceSmall, IdentifierPlainSequenceLarge,
		IdentifierPlainArraySmall, IdentifierPlainArrayLarge,
		IdentifierPlainMapSmall, IdentifierPlainMapLarge:
		union.Value = w.plainCollection(id)
	case IdentifierStronglyConnectedComponent:
		if id.ComponentKind != EquivalenceMinimal && id.ComponentKind != EquivalenceComplete {
			w.fail("component kind %s", id.ComponentKind)
		}
		union.Value = idl.Struct{
			"sc_component_id": idl.Union{Discriminator: int64(id.ComponentKind), Value: hashBytes(id.Hash)},
			"scc_length":      id.ComponentLength,
			"scc_index":       id.ComponentIndex,
		}
	case IdentifierMinimal, IdentifierComplete:
		union.Value = hashBytes(id.Hash)
	default:
		if !id.Kind.IsPrimitive() {
			w.fail("identifier kind %s", id.Kind)
		}
	}
	return union
}

func hashBytes(hash EquivalenceHash) []byte {
	return append([]byte(nil), hash[:]...)
}

func (w *valueWriter) plainCollection(id TypeIdentifier) idl.Struct {
	if id.Element == nil {
		w.fail("%s without element", id.Kind)
		return nil
	}
	value := idl.Struct{
		"header": idl.Struct{
			"equiv_kind":    uint8(id.Equivalence),
			"element_flags": id.ElementFlags,
		},
		"element_identifier": w.identifier(*id.Element),
	}
	switch id.Kind {
	case IdentifierPlainSequenceSmall:
		value["bound"] = w.smallBound(id.Bound, "sequence")
	case IdentifierPlainSequenceLarge:
		value["bound"] = id.Bound
	case IdentifierPlainArraySmall:
		dimensions := make([]byte, len(id.Dimensions))
		for index, dimension := range id.Dimensions {
			dimensions[index] = w.smallBound(dimension, "array")
		}
		value["array_bound_seq"] = dimensions
	case IdentifierPlainArrayLarge:
		value["array_bound_seq"] = append([]uint32{}, id.Dimensions...)
	case IdentifierPlainMapSmall, IdentifierPlainMapLarge:
		if id.Kind == IdentifierPlainMapSmall {
			value["bound"] = w.smallBound(id.Bound, "map")
		} else {
			value["bound"] = id.Bound
		}
		if id.Key == nil {
			w.fail("map without key")
			return nil
		}
		value["key_flags"] = id.KeyFlags
		value["key_identifier"] = w.identifier(*id.Key)
	}
	return value
}

func (w *valueWriter) typeDetail(object TypeObject) idl.Struct {
	if object.Equivalence == EquivalenceComplete {
		return idl.Struct{"type_name": object.Name}
	}
	return idl.Struct{}
}

func (w *valueWriter) memberDetail(equivalence EquivalenceKind, name string, hash NameHash) idl.Struct {
	if equivalence == EquivalenceComplete {
		return idl.Struct{"name": name}
	}
	return idl.Struct{"name_hash": append([]byte(nil), hash[:]...)}
}

func (w *valueWriter) object(object TypeObject) idl.Union {
	if object.Equivalence != EquivalenceMinimal && object.Equivalence != EquivalenceComplete {
		w.fail("object equivalence kind %s", object.Equivalence)
	}
	var body idl.Struct
	switch object.Kind {
	case TypeKindStructure:
		members := make([]any, len(object.Members))
		for index, member := range object.Members {
			members[index] = idl.Struct{
				"common": idl.Struct{
					"member_id":      member.ID,
					"member_flags":   member.Flags,
					"member_type_id": w.identifier(member.Type),
				},
				"detail": w.memberDetail(object.Equivalence, member.Name, member.NameHash),
			}
		}
		body = idl.Struct{
			"struct_flags": object.Flags,
			"header": idl.Struct{
				"base_type": w.identifier(object.Base),
				"detail":    w.typeDetail(object),
			},
			"member_seq": members,
		}
	case TypeKindUnion:
		members := make([]any, len(object.Members))
		for index, member := range object.Members {
			members[index] = idl.Struct{
				"common": idl.Struct{
					"member_id":    member.ID,
					"member_flags": member.Flags,
					"type_id":      w.identifier(member.Type),
					"label_seq":    append([]int32{}, member.Labels...),
				},
				"detail": w.memberDetail(object.Equivalence, member.Name, member.NameHash),
			}
		}
		body = idl.Struct{
			"union_flags": object.Flags,
			"header":      idl.Struct{"detail": w.typeDetail(object)},
			"discriminator": idl.Struct{
				"common": idl.Struct{
					"member_flags": object.DiscriminatorFlags,
					"type_id":      w.identifier(object.Discriminator),
				},
			},
			"member_seq": members,
		}
	case TypeKindEnum, TypeKindBitmask:
		header := idl.Struct{"common": idl.Struct{"bit_bound": object.BitBound}}
		if object.Equivalence == EquivalenceComplete {
			header["detail"] = w.typeDetail(object)
		}
		literals := make([]any, len(object.Literals))
		for index, literal := range object.Literals {
			common := idl.Struct{"flags": literal.Flags}
			if object.Kind == TypeKindEnum {
				common["value"] = literal.Value
			} else {
				common["position"] = uint16(literal.Value)
			}
			literals[index] = idl.Struct{
				"common": common,
				"detail": w.memberDetail(object.Equivalence, literal.Name, literal.NameHash),
			}
		}
		if object.Kind == TypeKindEnum {
			body = idl.Struct{"enum_flags": object.Flags, "header": header, "literal_seq": literals}
		} else {
			body = idl.Struct{"bitmask_flags": object.Flags, "header": header, "flag_seq": literals}
		}
	case TypeKindAlias:
		header := idl.Struct{}
		if object.Equivalence == EquivalenceComplete {
			header["detail"] = w.typeDetail(object)
		}
		body = idl.Struct{
			"alias_flags": object.Flags,
			"header":      header,
			"body": idl.Struct{
				"common": idl.Struct{
					"related_flags": object.RelatedFlags,
					"related_type":  w.identifier(object.Related),
				},
			},
		}
	default:
		w.fail("type kind %s", object.Kind)
	}
	return idl.Union{
		Discriminator: int64(object.Equivalence),
		Value:         idl.Union{Discriminator: int64(object.Kind), Value: body},
	}
}

func (w *valueWriter) withSize(id TypeIdentifierWithSize) idl.Struct {
	return idl.Struct{
		"type_id":                    w.identifier(id.ID),
		"typeobject_serialized_size": id.SerializedSize,
	}
}

func (w *valueWriter) withDependencies(dependencies TypeIdentifierWithDependencies) idl.Struct {
	list := make([]any, len(dependencies.Dependencies))
	for index, dependency := range dependencies.Dependencies {
		list[index] = w.withSize(dependency)
	}
	return idl.Struct{
		"typeid_with_size":       w.withSize(dependencies.Type),
		"dependent_typeid_count": dependencies.DependentCount,
		"dependent_typeids":      list,
	}
}

func (w *valueWriter) information(information TypeInformation) idl.Struct {
	return idl.Struct{
		"minimal":  w.withDependencies(information.Minimal),
		"complete": w.withDependencies(information.Complete),
	}
}

func (w *valueWriter) mapping(mapping TypeMapping) idl.Struct {
	pairs := func(list []TypeIdentifierTypeObjectPair) []any {
		values := make([]any, len(list))
		for index, pair := range list {
			values[index] = idl.Struct{
				"type_identifier": w.identifier(pair.ID),
				"type_object":     w.object(pair.Object),
			}
		}
		return values
	}
	identifiers := make([]any, len(mapping.CompleteToMinimal))
	for index, pair := range mapping.CompleteToMinimal {
		identifiers[index] = idl.Struct{
			"type_identifier1": w.identifier(pair.First),
			"type_identifier2": w.identifier(pair.Second),
		}
	}
	return idl.Struct{
		"identifier_object_pair_minimal":  pairs(mapping.Minimal),
		"identifier_object_pair_complete": pairs(mapping.Complete),
		"identifier_complete_minimal":     identifiers,
	}
}

// valueReader is the inverse of valueWriter. Decoded values come from
// the schema codecs, so a type mismatch means the schema and this file
// disagree; it is still reported rather than trusted.
type valueReader struct {
	err error
}

func (r *valueReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = malformed(format, args...)
	}
}

func take[T any](r *valueReader, value any, what string) T {
	typed, ok := value.(T)
	if !ok {
		r.fail("%s is %T", what, value)
	}
	return typed
}

func (r *valueReader) structure(value any, what string) idl.Struct {
	return take[idl.Struct](r, value, what)
}

func (r *valueReader) hash(value any) EquivalenceHash {
	var hash EquivalenceHash
	data := take[[]byte](r, value, "equivalence hash")
	if len(data) != len(hash) && r.err == nil {
		r.fail("equivalence hash of %d bytes", len(data))
	}
	copy(hash[:], data)
	return hash
}

func (r *valueReader) identifier(value any) TypeIdentifier {
	union := take[idl.Union](r, value, "type identifier")
	id := TypeIdentifier{Kind: IdentifierKind(union.Discriminator)}
	switch id.Kind {
	case IdentifierString8Small, IdentifierString16Small:
		id.Bound = uint32(take[uint8](r, r.structure(union.Value, "string")["bound"], "string bound"))
	case IdentifierString8Large, IdentifierString16Large:
		id.Bound = take[uint32](r, r.structure(union.Value, "string")["bound"], "string bound")
	case IdentifierPlainSequenceSmall, IdentifierPlainSequenceLarge,
		IdentifierPlainArraySmall, IdentifierPlainArrayLarge,
		IdentifierPlainMapSmall, IdentifierPlainMapLarge:
		r.plainCollection(&id, r.structure(union.Value, id.Kind.String()))
	case IdentifierStronglyConnectedComponent:
		value := r.structure(union.Value, "component")
		hashID := take[idl.Union](r, value["sc_component_id"], "component hash")
		id.ComponentKind = EquivalenceKind(hashID.Discriminator)
		id.Hash = r.hash(hashID.Value)
		id.ComponentLength = take[int32](r, value["scc_length"], "component length")
		id.ComponentIndex = take[int32](r, value["scc_index"], "component index")
	case IdentifierMinimal, IdentifierComplete:
		id.Hash = r.hash(union.Value)
	}
	return id
}

func (r *valueReader) plainCollection(id *TypeIdentifier, value idl.Struct) {
	header := r.structure(value["header"], "collection header")
	id.Equivalence = EquivalenceKind(take[uint8](r, header["equiv_kind"], "equivalence kind"))
	id.ElementFlags = take[uint16](r, header["element_flags"], "element flags")
	element := r.identifier(value["element_identifier"])
	id.Element = &element
	switch id.Kind {
	case IdentifierPlainSequenceSmall, IdentifierPlainMapSmall:
		id.Bound = uint32(take[uint8](r, value["bound"], "bound"))
	case IdentifierPlainSequenceLarge, IdentifierPlainMapLarge:
		id.Bound = take[uint32](r, value["bound"], "bound")
	case IdentifierPlainArraySmall:
		for _, dimension := range take[[]byte](r, value["array_bound_seq"], "array bounds") {
			id.Dimensions = append(id.Dimensions, uint32(dimension))
		}
	case IdentifierPlainArrayLarge:
		if dimensions := take[[]uint32](r, value["array_bound_seq"], "array bounds"); len(dimensions) > 0 {
			id.Dimensions = dimensions
		}
	}
	if id.Kind == IdentifierPlainMapSmall || id.Kind == IdentifierPlainMapLarge {
		id.KeyFlags = take[uint16](r, value["key_flags"], "key flags")
		key := r.identifier(value["key_identifier"])
		id.Key = &key
	}
}

func (r *valueReader) memberDetail(equivalence EquivalenceKind, value any) (string, NameHash) {
	detail := r.structure(value, "member detail")
	var hash NameHash
	if equivalence == EquivalenceComplete {
		return take[string](r, detail["name"], "member name"), hash
	}
	data := take[[]byte](r, detail["name_hash"], "name hash")
	copy(hash[:], data)
	return "", hash
}

func (r *valueReader) typeName(header idl.Struct, equivalence EquivalenceKind) string {
	if equivalence != EquivalenceComplete {
		return ""
	}
	return take[string](r, r.structure(header["detail"], "type detail")["type_name"], "type name")
}

func (r *valueReader) object(value any) TypeObject {
	outer := take[idl.Union](r, value, "type object")
	object := TypeObject{Equivalence: EquivalenceKind(outer.Discriminator)}
	if object.Equivalence != EquivalenceMinimal && object.Equivalence != EquivalenceComplete {
		r.fail("object equivalence kind %#x", outer.Discriminator)
		return object
	}
	inner := take[idl.Union](r, outer.Value, "type object body")
	object.Kind = TypeKind(inner.Discriminator)
	body := r.structure(inner.Value, object.Kind.String())
	switch object.Kind {
	case TypeKindStructure:
		object.Flags = take[uint16](r, body["struct_flags"], "struct flags")
		header := r.structure(body["header"], "struct header")
		object.Base = r.identifier(header["base_type"])
		object.Name = r.typeName(header, object.Equivalence)
		for _, element := range take[[]any](r, body["member_seq"], "struct members") {
			entry := r.structure(element, "struct member")
			common := r.structure(entry["common"], "struct member common")
			member := Member{
				ID:    take[uint32](r, common["member_id"], "member id"),
				Flags: take[uint16](r, common["member_flags"], "member flags"),
				Type:  r.identifier(common["member_type_id"]),
			}
			member.Name, member.NameHash = r.memberDetail(object.Equivalence, entry["detail"])
			object.Members = append(object.Members, member)
		}
	case TypeKindUnion:
		object.Flags = take[uint16](r, body["union_flags"], "union flags")
		object.Name = r.typeName(r.structure(body["header"], "union header"), object.Equivalence)
		discriminator := r.structure(r.structure(body["discriminator"], "discriminator")["common"], "discriminator common")
		object.DiscriminatorFlags = take[uint16](r, discriminator["member_flags"], "discriminator flags")
		object.Discriminator = r.identifier(discriminator["type_id"])
		for _, element := range take[[]any](r, body["member_seq"], "union members") {
			entry := r.structure(element, "union member")
			common := r.structure(entry["common"], "union member common")
			member := Member{
				ID:    take[uint32](r, common["member_id"], "member id"),
				Flags: take[uint16](r, common["member_flags"], "member flags"),
				Type:  r.identifier(common["type_id"]),
			}
			if labels := take[[]int32](r, common["label_seq"], "labels"); len(labels) > 0 {
				member.Labels = labels
			}
			member.Name, member.NameHash = r.memberDetail(object.Equivalence, entry["detail"])
			object.Members = append(object.Members, member)
		}
	case TypeKindEnum, TypeKindBitmask:
		flagsName, literalsName := "enum_flags", "literal_seq"
		if object.Kind == TypeKindBitmask {
			flagsName, literalsName = "bitmask_flags", "flag_seq"
		}
		object.Flags = take[uint16](r, body[flagsName], flagsName)
		header := r.structure(body["header"], "header")
		object.BitBound = take[uint16](r, r.structure(header["common"], "header common")["bit_bound"], "bit bound")
		object.Name = r.typeName(header, object.Equivalence)
		for _, element := range take[[]any](r, body[literalsName], literalsName) {
			entry := r.structure(element, "literal")
			common := r.structure(entry["common"], "literal common")
			literal := Literal{Flags: take[uint16](r, common["flags"], "literal flags")}
			if object.Kind == TypeKindEnum {
				literal.Value = take[int32](r, common["value"], "literal value")
			} else {
				literal.Value = int32(take[uint16](r, common["position"], "flag position"))
			}
			literal.Name, literal.NameHash = r.memberDetail(object.Equivalence, entry["detail"])
			object.Literals = append(object.Literals, literal)
		}
	case TypeKindAlias:
		object.Flags = take[uint16](r, body["alias_flags"], "alias flags")
		object.Name = r.typeName(r.structure(body["header"], "alias header"), object.Equivalence)
		common := r.structure(r.structure(body["body"], "alias body")["common"], "alias body common")
		object.RelatedFlags = take[uint16](r, common["related_flags"], "related flags")
		object.Related = r.identifier(common["related_type"])
	default:
		r.fail("type kind %s", object.Kind)
	}
	return object
}

func (r *valueReader) withSize(value any) TypeIdentifierWithSize {
	entry := r.structure(value, "identifier with size")
	return TypeIdentifierWithSize{
		ID:             r.identifier(entry["type_id"]),
		SerializedSize: take[uint32](r, entry["typeobject_serialized_size"], "serialized size"),
	}
}

func (r *valueReader) withDependencies(value any) TypeIdentifierWithDependencies {
	entry := r.structure(value, "identifier with dependencies")
	dependencies := TypeIdentifierWithDependencies{
		Type:           r.withSize(entry["typeid_with_size"]),
		DependentCount: take[int32](r, entry["dependent_typeid_count"], "dependency count"),
	}
	for _, element := range take[[]any](r, entry["dependent_typeids"], "dependencies") {
		dependencies.Dependencies = append(dependencies.Dependencies, r.withSize(element))
	}
	return dependencies
}

func (r *valueReader) information(value any) TypeInformation {
	entry := r.structure(value, "type information")
	return TypeInformation{
		Minimal:  r.withDependencies(entry["minimal"]),
		Complete: r.withDependencies(entry["complete"]),
	}
}

func (r *valueReader) mapping(value any) TypeMapping {
	entry := r.structure(value, "type mapping")
	pairs := func(name string) []TypeIdentifierTypeObjectPair {
		var list []TypeIdentifierTypeObjectPair
		for _, element := range take[[]any](r, entry[name], name) {
			pair := r.structure(element, "identifier object pair")
			list = append(list, TypeIdentifierTypeObjectPair{
				ID:     r.identifier(pair["type_identifier"]),
				Object: r.object(pair["type_object"]),
			})
		}
		return list
	}
	mapping := TypeMapping{
		Minimal:  pairs("identifier_object_pair_minimal"),
		Complete: pairs("identifier_object_pair_complete"),
	}
	for _, element := range take[[]any](r, entry["identifier_complete_minimal"], "identifier pairs") {
		pair := r.structure(element, "identifier pair")
		mapping.CompleteToMinimal = append(mapping.CompleteToMinimal, TypeIdentifierPair{
			First:  r.identifier(pair["type_identifier1"]),
			Second: r.identifier(pair["type_identifier2"]),
		})
	}
	return mapping
}
