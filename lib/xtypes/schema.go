// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import "github.com/bureau-foundation/xcdr/lib/idl"

// The type system describes itself: identifiers and objects are
// values of the declarations below, encoded by lib/cdr like any other
// sample. Member names follow the DDS::XTypes IDL so that the complete
// TypeObjects of these declarations match other implementations.

const schemaPrefix = "DDS::XTypes::"

// schemaTypes holds the root declarations the package encodes.
type schemaTypes struct {
	typeIdentifier  *idl.Type
	typeObject      *idl.Type
	typeObjects     *idl.Type
	typeInformation *idl.Type
	typeMapping     *idl.Type
}

func field(name string, t *idl.Type) idl.Member {
	return idl.Member{Name: name, Type: t}
}

func optionalField(name string, t *idl.Type) idl.Member {
	return idl.Member{Name: name, Type: t, Optional: true}
}

func final(name string, members ...idl.Member) *idl.Type {
	return idl.NewStruct(schemaPrefix+name, idl.Final).SetMembers(members...)
}

func appendable(name string, members ...idl.Member) *idl.Type {
	return idl.NewStruct(schemaPrefix+name, idl.Appendable).SetMembers(members...)
}

func labels(kinds ...uint8) []int64 {
	values := make([]int64, len(kinds))
	for index, kind := range kinds {
		values[index] = int64(kind)
	}
	return values
}

func newSchema() schemaTypes {
	octet := idl.Byte
	flags := idl.Uint16
	memberName := idl.String(256)
	equivalenceHash := idl.Alias(schemaPrefix+"EquivalenceHash", idl.Array(octet, 14))
	nameHash := idl.Alias(schemaPrefix+"NameHash", idl.Array(octet, 4))

	typeIdentifier := idl.NewUnion(schemaPrefix+"TypeIdentifier", octet, idl.Final)

	hashID := idl.NewUnion(schemaPrefix+"TypeObjectHashId", octet, idl.Final).SetCases(
		idl.Case{Name: "hash", Type: equivalenceHash, Labels: labels(uint8(EquivalenceComplete), uint8(EquivalenceMinimal))},
	)
	componentID := final("StronglyConnectedComponentId",
		field("sc_component_id", hashID),
		field("scc_length", idl.Int32),
		field("scc_index", idl.Int32),
	)
	collectionHeader := final("PlainCollectionHeader",
		field("equiv_kind", octet),
		field("element_flags", flags),
	)
	plainCollection := func(name string, bound *idl.Type, boundName string) *idl.Type {
		return final(name,
			field("header", collectionHeader),
			field(boundName, bound),
			field("element_identifier", typeIdentifier),
		)
	}
	plainMap := func(name string, bound *idl.Type) *idl.Type {
		return final(name,
			field("header", collectionHeader),
			field("bound", bound),
			field("element_identifier", typeIdentifier),
			field("key_flags", flags),
			field("key_identifier", typeIdentifier),
		)
	}

	typeIdentifier.SetCases(
		idl.Case{Name: "no_value", Labels: labels(
			uint8(IdentifierNone), uint8(IdentifierBoolean), uint8(IdentifierByte),
			uint8(IdentifierInt16), uint8(IdentifierInt32), uint8(IdentifierInt64),
			uint8(IdentifierUint16), uint8(IdentifierUint32), uint8(IdentifierUint64),
			uint8(IdentifierFloat32), uint8(IdentifierFloat64), uint8(IdentifierFloat128),
			uint8(IdentifierInt8), uint8(IdentifierUint8),
			uint8(IdentifierChar8), uint8(IdentifierChar16),
		)},
		idl.Case{Name: "string_sdefn", Type: final("StringSTypeDefn", field("bound", octet)),
			Labels: labels(uint8(IdentifierString8Small), uint8(IdentifierString16Small))},
		idl.Case{Name: "string_ldefn", Type: final("StringLTypeDefn", field("bound", idl.Uint32)),
			Labels: labels(uint8(IdentifierString8Large), uint8(IdentifierString16Large))},
		idl.Case{Name: "seq_sdefn", Type: plainCollection("PlainSequenceSElemDefn", octet, "bound"),
			Labels: labels(uint8(IdentifierPlainSequenceSmall))},
		idl.Case{Name: "seq_ldefn", Type: plainCollection("PlainSequenceLElemDefn", idl.Uint32, "bound"),
			Labels: labels(uint8(IdentifierPlainSequenceLarge))},
		idl.Case{Name: "array_sdefn", Type: plainCollection("PlainArraySElemDefn", idl.Bytes(0), "array_bound_seq"),
			Labels: labels(uint8(IdentifierPlainArraySmall))},
		idl.Case{Name: "array_ldefn", Type: plainCollection("PlainArrayLElemDefn", idl.Sequence(idl.Uint32, 0), "array_bound_seq"),
			Labels: labels(uint8(IdentifierPlainArrayLarge))},
		idl.Case{Name: "map_sdefn", Type: plainMap("PlainMapSTypeDefn", octet),
			Labels: labels(uint8(IdentifierPlainMapSmall))},
		idl.Case{Name: "map_ldefn", Type: plainMap("PlainMapLTypeDefn", idl.Uint32),
			Labels: labels(uint8(IdentifierPlainMapLarge))},
		idl.Case{Name: "sc_component_id", Type: componentID,
			Labels: labels(uint8(IdentifierStronglyConnectedComponent))},
		idl.Case{Name: "equivalence_hash", Type: equivalenceHash,
			Labels: labels(uint8(IdentifierComplete), uint8(IdentifierMinimal))},
		idl.Case{Name: "extended_defn", Default: true,
			Type: idl.NewStruct(schemaPrefix+"ExtendedTypeDefn", idl.Mutable)},
	)

	// Annotations are never produced. Their declarations stop at the
	// leading members; appendable framing lets a decoder skip whatever
	// follows when a peer sends them.
	verbatim := final("AppliedVerbatimAnnotation",
		field("placement", idl.String(32)),
		field("language", idl.String(32)),
		field("text", idl.String(0)),
	)
	builtinType := appendable("AppliedBuiltinTypeAnnotations", optionalField("verbatim", verbatim))
	builtinMember := appendable("AppliedBuiltinMemberAnnotations", optionalField("unit", idl.String(0)))
	custom := idl.Sequence(appendable("AppliedAnnotation", field("annotation_typeid", typeIdentifier)), 0)

	completeTypeDetail := final("CompleteTypeDetail",
		optionalField("ann_builtin", builtinType),
		optionalField("ann_custom", custom),
		field("type_name", memberName),
	)
	minimalTypeDetail := final("MinimalTypeDetail")
	completeMemberDetail := final("CompleteMemberDetail",
		field("name", memberName),
		optionalField("ann_builtin", builtinMember),
		optionalField("ann_custom", custom),
	)
	minimalMemberDetail := final("MinimalMemberDetail", field("name_hash", nameHash))

	// Structures.
	commonStructMember := final("CommonStructMember",
		field("member_id", idl.Uint32),
		field("member_flags", flags),
		field("member_type_id", typeIdentifier),
	)
	completeStruct := final("CompleteStructType",
		field("struct_flags", flags),
		field("header", appendable("CompleteStructHeader",
			field("base_type", typeIdentifier),
			field("detail", completeTypeDetail),
		)),
		field("member_seq", idl.Sequence(appendable("CompleteStructMember",
			field("common", commonStructMember),
			field("detail", completeMemberDetail),
		), 0)),
	)
	minimalStruct := final("MinimalStructType",
		field("struct_flags", flags),
		field("header", appendable("MinimalStructHeader",
			field("base_type", typeIdentifier),
			field("detail", minimalTypeDetail),
		)),
		field("member_seq", idl.Sequence(appendable("MinimalStructMember",
			field("common", commonStructMember),
			field("detail", minimalMemberDetail),
		), 0)),
	)

	// Unions.
	commonUnionMember := final("CommonUnionMember",
		field("member_id", idl.Uint32),
		field("member_flags", flags),
		field("type_id", typeIdentifier),
		field("label_seq", idl.Sequence(idl.Int32, 0)),
	)
	commonDiscriminator := final("CommonDiscriminatorMember",
		field("member_flags", flags),
		field("type_id", typeIdentifier),
	)
	completeUnion := final("CompleteUnionType",
		field("union_flags", flags),
		field("header", final("CompleteUnionHeader", field("detail", completeTypeDetail))),
		field("discriminator", appendable("CompleteDiscriminatorMember",
			field("common", commonDiscriminator),
			optionalField("ann_builtin", builtinType),
			optionalField("ann_custom", custom),
		)),
		field("member_seq", idl.Sequence(appendable("CompleteUnionMember",
			field("common", commonUnionMember),
			field("detail", completeMemberDetail),
		), 0)),
	)
	minimalUnion := final("MinimalUnionType",
		field("union_flags", flags),
		field("header", final("MinimalUnionHeader", field("detail", minimalTypeDetail))),
		field("discriminator", appendable("MinimalDiscriminatorMember",
			field("common", commonDiscriminator),
		)),
		field("member_seq", idl.Sequence(appendable("MinimalUnionMember",
			field("common", commonUnionMember),
			field("detail", minimalMemberDetail),
		), 0)),
	)

	// Aliases.
	commonAliasBody := final("CommonAliasBody",
		field("related_flags", flags),
		field("related_type", typeIdentifier),
	)
	completeAlias := final("CompleteAliasType",
		field("alias_flags", flags),
		field("header", final("CompleteAliasHeader", field("detail", completeTypeDetail))),
		field("body", final("CompleteAliasBody",
			field("common", commonAliasBody),
			optionalField("ann_builtin", builtinMember),
			optionalField("ann_custom", custom),
		)),
	)
	minimalAlias := final("MinimalAliasType",
		field("alias_flags", flags),
		field("header", final("MinimalAliasHeader")),
		field("body", final("MinimalAliasBody", field("common", commonAliasBody))),
	)

	// Enums and bitmasks.
	commonEnumHeader := final("CommonEnumeratedHeader", field("bit_bound", idl.Uint16))
	completeEnumHeader := final("CompleteEnumeratedHeader",
		field("common", commonEnumHeader),
		field("detail", completeTypeDetail),
	)
	commonLiteral := final("CommonEnumeratedLiteral",
		field("value", idl.Int32),
		field("flags", flags),
	)
	completeEnum := final("CompleteEnumeratedType",
		field("enum_flags", flags),
		field("header", completeEnumHeader),
		field("literal_seq", idl.Sequence(appendable("CompleteEnumeratedLiteral",
			field("common", commonLiteral),
			field("detail", completeMemberDetail),
		), 0)),
	)
	minimalEnum := final("MinimalEnumeratedType",
		field("enum_flags", flags),
		field("header", final("MinimalEnumeratedHeader", field("common", commonEnumHeader))),
		field("literal_seq", idl.Sequence(appendable("MinimalEnumeratedLiteral",
			field("common", commonLiteral),
			field("detail", minimalMemberDetail),
		), 0)),
	)
	commonBitflag := final("CommonBitflag",
		field("position", idl.Uint16),
		field("flags", flags),
	)
	completeBitmask := final("CompleteBitmaskType",
		field("bitmask_flags", flags),
		field("header", idl.Alias(schemaPrefix+"CompleteBitmaskHeader", completeEnumHeader)),
		field("flag_seq", idl.Sequence(final("CompleteBitflag",
			field("common", commonBitflag),
			field("detail", completeMemberDetail),
		), 0)),
	)
	minimalBitmask := final("MinimalBitmaskType",
		field("bitmask_flags", flags),
		field("header", final("MinimalBitmaskHeader",
			field("common", final("CommonBitmaskHeader", field("bit_bound", idl.Uint16))),
		)),
		field("flag_seq", idl.Sequence(final("MinimalBitflag",
			field("common", commonBitflag),
			field("detail", minimalMemberDetail),
		), 0)),
	)

	objectUnion := func(name string, alias, structure, union, enum, bitmask *idl.Type) *idl.Type {
		return idl.NewUnion(schemaPrefix+name, octet, idl.Final).SetCases(
			idl.Case{Name: "alias_type", Type: alias, Labels: labels(uint8(TypeKindAlias))},
			idl.Case{Name: "struct_type", Type: structure, Labels: labels(uint8(TypeKindStructure))},
			idl.Case{Name: "union_type", Type: union, Labels: labels(uint8(TypeKindUnion))},
			idl.Case{Name: "enumerated_type", Type: enum, Labels: labels(uint8(TypeKindEnum))},
			idl.Case{Name: "bitmask_type", Type: bitmask, Labels: labels(uint8(TypeKindBitmask))},
			idl.Case{Name: "extended_type", Default: true, Type: final(name[:len(name)-len("TypeObject")]+"ExtendedType")},
		)
	}
	typeObject := idl.NewUnion(schemaPrefix+"TypeObject", octet, idl.Appendable).SetCases(
		idl.Case{Name: "complete", Labels: labels(uint8(EquivalenceComplete)),
			Type: objectUnion("CompleteTypeObject", completeAlias, completeStruct, completeUnion, completeEnum, completeBitmask)},
		idl.Case{Name: "minimal", Labels: labels(uint8(EquivalenceMinimal)),
			Type: objectUnion("MinimalTypeObject", minimalAlias, minimalStruct, minimalUnion, minimalEnum, minimalBitmask)},
	)

	withSize := final("TypeIdentifierWithSize",
		field("type_id", typeIdentifier),
		field("typeobject_serialized_size", idl.Uint32),
	)
	withDependencies := final("TypeIdentifierWithDependencies",
		field("typeid_with_size", withSize),
		field("dependent_typeid_count", idl.Int32),
		field("dependent_typeids", idl.Sequence(withSize, 0)),
	)
	typeInformation := idl.NewStruct(schemaPrefix+"TypeInformation", idl.Mutable).SetMembers(
		idl.Member{Name: "minimal", Type: withDependencies, ID: 0x1001, HasID: true},
		idl.Member{Name: "complete", Type: withDependencies, ID: 0x1002, HasID: true},
	)

	objectPairs := idl.Sequence(final("TypeIdentifierTypeObjectPair",
		field("type_identifier", typeIdentifier),
		field("type_object", typeObject),
	), 0)
	typeMapping := appendable("TypeMapping",
		field("identifier_object_pair_minimal", objectPairs),
		field("identifier_object_pair_complete", objectPairs),
		field("identifier_complete_minimal", idl.Sequence(final("TypeIdentifierPair",
			field("type_identifier1", typeIdentifier),
			field("type_identifier2", typeIdentifier),
		), 0)),
	)

	return schemaTypes{
		typeIdentifier:  typeIdentifier,
		typeObject:      typeObject,
		typeObjects:     idl.Sequence(typeObject, 0),
		typeInformation: typeInformation,
		typeMapping:     typeMapping,
	}
}
