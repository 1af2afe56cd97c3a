// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idlschema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/xtypes"
)

func loadFleet(t *testing.T, fleetFile string) *idl.Namespace {
	t.Helper()
	namespace, err := LoadFiles(filepath.Join("testdata", "geo.yaml"), filepath.Join("testdata", fleetFile))
	require.NoError(t, err)
	return namespace
}

func lookupType(t *testing.T, namespace *idl.Namespace, name string) *idl.Type {
	t.Helper()
	declared, ok := namespace.Lookup(name)
	require.True(t, ok, "%s not declared", name)
	return declared
}

func TestLoadFleet(t *testing.T) {
	namespace := loadFleet(t, "fleet.yaml")

	var names []string
	for _, declared := range namespace.Types() {
		names = append(names, declared.Name)
	}
	require.Equal(t, []string{
		"geo::Waypoint",
		"fleet::Vehicle", "fleet::Status", "fleet::Capabilities", "fleet::Payload", "fleet::Plate",
	}, names)

	vehicle := lookupType(t, namespace, "fleet::Vehicle")
	require.Equal(t, idl.Appendable, vehicle.Extensibility)
	id, ok := vehicle.MemberByName("id")
	require.True(t, ok)
	require.True(t, id.Key)
	require.Equal(t, "fleet::Plate", id.Type.Name)
	require.Equal(t, idl.KindString, id.Type.Underlying().Kind)
	require.Equal(t, uint32(16), id.Type.Underlying().Bound)

	route, _ := vehicle.MemberByName("route")
	require.Same(t, lookupType(t, namespace, "geo::Waypoint"), route.Type.Element)
	require.Equal(t, uint32(64), route.Type.Bound)

	payload, _ := vehicle.MemberByName("payload")
	require.True(t, payload.Optional)

	status := lookupType(t, namespace, "fleet::Status")
	var values []int32
	for _, literal := range status.Literals {
		values = append(values, literal.Value)
	}
	require.Equal(t, []int32{0, 1, 10}, values)

	capabilities := lookupType(t, namespace, "fleet::Capabilities")
	require.Equal(t, uint16(8), capabilities.BitBound)
	var positions []uint16
	for _, flag := range capabilities.Flags {
		positions = append(positions, flag.Position)
	}
	require.Equal(t, []uint16{0, 4, 5}, positions)

	union := lookupType(t, namespace, "fleet::Payload")
	require.Same(t, status, union.Discriminator)
	require.Equal(t, idl.Mutable, union.Extensibility)
	require.Equal(t, []int64{0}, union.Cases[0].Labels)
	require.Equal(t, []int64{1}, union.Cases[1].Labels)
	require.Equal(t, []int64{10}, union.Cases[2].Labels)
	require.Equal(t, 2, union.SelectCase(10))
}

func TestYAMLAndJSONCDeclareTheSameTypes(t *testing.T) {
	fromYAML := loadFleet(t, "fleet.yaml")
	fromJSONC := loadFleet(t, "fleet.jsonc")

	yamlTypes, jsoncTypes := fromYAML.Types(), fromJSONC.Types()
	require.Len(t, jsoncTypes, len(yamlTypes))
	for index := range yamlTypes {
		require.Equal(t, yamlTypes[index].Declaration(), jsoncTypes[index].Declaration())
	}

	yamlHash, err := xtypes.NewBuilder(nil).TypeHash(lookupType(t, fromYAML, "fleet::Vehicle"))
	require.NoError(t, err)
	jsoncHash, err := xtypes.NewBuilder(nil).TypeHash(lookupType(t, fromJSONC, "fleet::Vehicle"))
	require.NoError(t, err)
	require.Equal(t, yamlHash.MinimalBytes, jsoncHash.MinimalBytes)
	require.Equal(t, yamlHash.CompleteBytes, jsoncHash.CompleteBytes)
	require.True(t, yamlHash.CompleteID.Equal(jsoncHash.CompleteID))
}

func TestLoadSelfAndLaterReferences(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.Add("tree.yaml", &File{
		Module: "tree",
		Types: []Declaration{
			{Struct: "Forest", Members: []MemberDeclaration{
				{Name: "roots", Type: "sequence<Node>"},
			}},
		},
	}))
	require.NoError(t, loader.Add("node.yaml", &File{
		Module: "tree",
		Types: []Declaration{
			{Struct: "Node", Extensibility: "mutable", AutoID: "hash", Members: []MemberDeclaration{
				{Name: "value", Type: "int64"},
				{Name: "children", Type: "sequence<Node>"},
				{Name: "parent", Type: "::tree::Node", Optional: true, ID: memberID(99)},
			}},
		},
	}))
	namespace, err := loader.Load()
	require.NoError(t, err)

	node := lookupType(t, namespace, "tree::Node")
	children, _ := node.MemberByName("children")
	require.Same(t, node, children.Type.Element)
	value, _ := node.MemberByName("value")
	require.Equal(t, idl.HashMemberID("value"), value.ID)
	parent, _ := node.MemberByName("parent")
	require.Equal(t, uint32(99), parent.ID)

	forest := lookupType(t, namespace, "tree::Forest")
	roots, _ := forest.MemberByName("roots")
	require.Same(t, node, roots.Type.Element)

	_, err = loader.Load()
	require.Error(t, err)
	require.Error(t, loader.Add("late.yaml", &File{}))
}

func TestLoadNestedModuleScopes(t *testing.T) {
	loader := NewLoader()
	require.NoError(t, loader.Add("outer.yaml", &File{
		Module: "outer",
		Types:  []Declaration{{Typedef: "Count", Type: "uint16"}},
	}))
	require.NoError(t, loader.Add("inner.yaml", &File{
		Module: "outer::inner",
		Types: []Declaration{
			{Typedef: "Name", Type: "string<8>"},
			{Struct: "Item", Members: []MemberDeclaration{
				{Name: "name", Type: "Name"},
				{Name: "count", Type: "Count"},
			}},
		},
	}))
	namespace, err := loader.Load()
	require.NoError(t, err)

	item := lookupType(t, namespace, "outer::inner::Item")
	name, _ := item.MemberByName("name")
	require.Equal(t, "outer::inner::Name", name.Type.Name)
	count, _ := item.MemberByName("count")
	require.Equal(t, "outer::Count", count.Type.Name)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		message string
	}{
		{
			name: "unknown member type",
			file: File{Types: []Declaration{{Struct: "A", Members: []MemberDeclaration{{Name: "b", Type: "Missing"}}}}},
			message: `unknown type "Missing"`,
		},
		{
			name:    "duplicate declaration",
			file:    File{Types: []Declaration{{Enum: "A", Literals: []LiteralDeclaration{{Name: "x"}}}, {Typedef: "A", Type: "int32"}}},
			message: "declared twice",
		},
		{
			name:    "two kinds",
			file:    File{Types: []Declaration{{Struct: "A", Union: "B"}}},
			message: "more than one kind",
		},
		{
			name:    "no kind",
			file:    File{Types: []Declaration{{Extensibility: "final"}}},
			message: "names no struct",
		},
		{
			name:    "unknown extensibility",
			file:    File{Types: []Declaration{{Struct: "A", Extensibility: "elastic"}}},
			message: `unknown extensibility "elastic"`,
		},
		{
			name:    "unknown autoid",
			file:    File{Types: []Declaration{{Struct: "A", AutoID: "random"}}},
			message: `unknown autoid "random"`,
		},
		{
			name:    "union without discriminator",
			file:    File{Types: []Declaration{{Union: "U", Cases: []CaseDeclaration{{Name: "a", Type: "int32", Labels: []Label{{Value: 1}}}}}}},
			message: "no discriminator",
		},
		{
			name: "enumerator label on integer discriminator",
			file: File{Types: []Declaration{{Union: "U", Discriminator: "int32", Cases: []CaseDeclaration{
				{Name: "a", Type: "int32", Labels: []Label{{Literal: "first"}}},
			}}}},
			message: "discriminator is int32",
		},
		{
			name: "missing enumerator",
			file: File{Types: []Declaration{
				{Enum: "E", Literals: []LiteralDeclaration{{Name: "first"}}},
				{Union: "U", Discriminator: "E", Cases: []CaseDeclaration{{Name: "a", Labels: []Label{{Literal: "second"}}}}},
			}},
			message: `has no enumerator "second"`,
		},
		{
			name:    "typedef without target",
			file:    File{Types: []Declaration{{Typedef: "T"}}},
			message: "no target type",
		},
		{
			name:    "invalid after normalization",
			file:    File{Types: []Declaration{{Struct: "A", Members: []MemberDeclaration{{Name: "x", Type: "int32"}, {Name: "x", Type: "int64"}}}}},
			message: "duplicate member",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			loader := NewLoader()
			err := loader.Add("test.yaml", &test.file)
			if err == nil {
				_, err = loader.Load()
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), test.message)
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("types:\n  - struct: A\n    colour: red\n"), FormatYAML)
	require.ErrorContains(t, err, "colour")

	_, err = Parse([]byte(`{"types": [{"struct": "A", "colour": "red"}]}`), FormatJSONC)
	require.ErrorContains(t, err, "colour")
}

func TestParseLabels(t *testing.T) {
	file, err := Parse([]byte("types:\n  - union: U\n    discriminator: int16\n    cases:\n      - {name: a, labels: [-3, 0x10, north]}\n"), FormatYAML)
	require.NoError(t, err)
	require.Equal(t, []Label{{Value: -3}, {Value: 16}, {Literal: "north"}}, file.Types[0].Cases[0].Labels)

	file, err = Parse([]byte(`{"types": [{"union": "U", "cases": [{"name": "a", "labels": [-3, "north",]}]}]}`), FormatJSONC)
	require.NoError(t, err)
	require.Equal(t, []Label{{Value: -3}, {Literal: "north"}}, file.Types[0].Cases[0].Labels)

	_, err = Parse([]byte(`{"types": [{"union": "U", "cases": [{"name": "a", "labels": [1.5]}]}]}`), FormatJSONC)
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	_, err := FormatOf("schema.toml")
	require.Error(t, err)
	format, err := FormatOf("Schema.YML")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	directory := t.TempDir()
	path := filepath.Join(directory, "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"types": [`), 0o644))
	_, err = ReadFile(path)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), path), "error %q lacks the path", err)

	_, err = LoadFiles(filepath.Join(directory, "missing.yaml"))
	require.Error(t, err)
}

func memberID(id uint32) *uint32 { return &id }
