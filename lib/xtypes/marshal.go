// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"fmt"
	"slices"

	"github.com/bureau-foundation/xcdr/lib/cdr"
	"github.com/bureau-foundation/xcdr/lib/idl"
)

// All marshaled forms are XCDR2 little-endian without an encapsulation
// header: the bytes TypeObject hashes are computed over.

var (
	schema = newSchema()

	identifierCodec  = newSchemaCodec(schema.typeIdentifier)
	objectCodec      = newSchemaCodec(schema.typeObject)
	objectsCodec     = newSchemaCodec(schema.typeObjects)
	informationCodec = newSchemaCodec(schema.typeInformation)
	mappingCodec     = newSchemaCodec(schema.typeMapping)
)

func newSchemaCodec(t *idl.Type) *cdr.Codec {
	return cdr.New(t, cdr.Config{Version: cdr.VersionXCDR2})
}

func encode(codec *cdr.Codec, value any, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	data, err := codec.Serialize(value, cdr.WithoutHeader())
	if err != nil {
		return nil, fmt.Errorf("xtypes: encoding %s: %w", codec.Type().Name, err)
	}
	return slices.Clone(data), nil
}

func decode(codec *cdr.Codec, data []byte) (any, error) {
	value, err := codec.Deserialize(data, cdr.WithoutHeader())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTypeIdentifier, err)
	}
	return value, nil
}

// MarshalTypeIdentifier encodes id.
func MarshalTypeIdentifier(id TypeIdentifier) ([]byte, error) {
	var writer valueWriter
	value := writer.identifier(id)
	return encode(identifierCodec, value, writer.err)
}

// UnmarshalTypeIdentifier decodes an identifier.
func UnmarshalTypeIdentifier(data []byte) (TypeIdentifier, error) {
	value, err := decode(identifierCodec, data)
	if err != nil {
		return TypeIdentifier{}, err
	}
	var reader valueReader
	id := reader.identifier(value)
	return id, reader.err
}

// MarshalTypeObject encodes object. The equivalence hash of a type is
// [HashOf] these bytes.
func MarshalTypeObject(object TypeObject) ([]byte, error) {
	var writer valueWriter
	value := writer.object(object)
	return encode(objectCodec, value, writer.err)
}

// UnmarshalTypeObject decodes an object.
func UnmarshalTypeObject(data []byte) (TypeObject, error) {
	value, err := decode(objectCodec, data)
	if err != nil {
		return TypeObject{}, err
	}
	var reader valueReader
	object := reader.object(value)
	return object, reader.err
}

// marshalTypeObjects encodes a sequence of objects, the input to a
// strongly connected component hash.
func marshalTypeObjects(objects []TypeObject) ([]byte, error) {
	var writer valueWriter
	values := make([]any, len(objects))
	for index, object := range objects {
		values[index] = writer.object(object)
	}
	return encode(objectsCodec, values, writer.err)
}

// MarshalTypeInformation encodes information.
func MarshalTypeInformation(information TypeInformation) ([]byte, error) {
	var writer valueWriter
	value := writer.information(information)
	return encode(informationCodec, value, writer.err)
}

// UnmarshalTypeInformation decodes type information.
func UnmarshalTypeInformation(data []byte) (TypeInformation, error) {
	value, err := decode(informationCodec, data)
	if err != nil {
		return TypeInformation{}, err
	}
	var reader valueReader
	information := reader.information(value)
	return information, reader.err
}

// MarshalTypeMapping encodes mapping.
func MarshalTypeMapping(mapping TypeMapping) ([]byte, error) {
	var writer valueWriter
	value := writer.mapping(mapping)
	return encode(mappingCodec, value, writer.err)
}

// UnmarshalTypeMapping decodes a type mapping.
func UnmarshalTypeMapping(data []byte) (TypeMapping, error) {
	value, err := decode(mappingCodec, data)
	if err != nil {
		return TypeMapping{}, err
	}
	var reader valueReader
	mapping := reader.mapping(value)
	return mapping, reader.err
}
