// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idlschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a schema file.
type Format uint8

const (
	FormatYAML Format = iota
	FormatJSONC
)

func (format Format) String() string {
	switch format {
	case FormatYAML:
		return "yaml"
	case FormatJSONC:
		return "jsonc"
	}
	return fmt.Sprintf("Format(%d)", uint8(format))
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	}
	return 0, fmt.Errorf("%s: unrecognized schema extension (want .yaml, .yml, .json, or .jsonc)", path)
}

// File is one schema document.
type File struct {
	// Module qualifies every declared name: "fleet" and "Vehicle"
	// declare "fleet::Vehicle". Nested modules use "::".
	Module string        `yaml:"module,omitempty" json:"module,omitempty"`
	Types  []Declaration `yaml:"types" json:"types"`
}

// Declaration declares one named type. Exactly one of Struct, Union,
// Enum, Bitmask, and Typedef carries the (module-relative) name; it
// selects which of the remaining fields apply.
type Declaration struct {
	Struct  string `yaml:"struct,omitempty" json:"struct,omitempty"`
	Union   string `yaml:"union,omitempty" json:"union,omitempty"`
	Enum    string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Bitmask string `yaml:"bitmask,omitempty" json:"bitmask,omitempty"`
	Typedef string `yaml:"typedef,omitempty" json:"typedef,omitempty"`

	// Extensibility is "final" (the default), "appendable", or
	// "mutable". Structs and unions only.
	Extensibility string `yaml:"extensibility,omitempty" json:"extensibility,omitempty"`

	// AutoID is "sequential" (the default) or "hash". Structs only.
	AutoID string `yaml:"autoid,omitempty" json:"autoid,omitempty"`

	Nested  bool                `yaml:"nested,omitempty" json:"nested,omitempty"`
	Members []MemberDeclaration `yaml:"members,omitempty" json:"members,omitempty"`

	Discriminator    string            `yaml:"discriminator,omitempty" json:"discriminator,omitempty"`
	KeyDiscriminator bool              `yaml:"key_discriminator,omitempty" json:"key_discriminator,omitempty"`
	Cases            []CaseDeclaration `yaml:"cases,omitempty" json:"cases,omitempty"`

	Literals []LiteralDeclaration `yaml:"literals,omitempty" json:"literals,omitempty"`
	Flags    []FlagDeclaration    `yaml:"flags,omitempty" json:"flags,omitempty"`
	BitBound uint16               `yaml:"bit_bound,omitempty" json:"bit_bound,omitempty"`

	// Type is the target of a typedef.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// MemberDeclaration is one struct member.
type MemberDeclaration struct {
	Name           string  `yaml:"name" json:"name"`
	Type           string  `yaml:"type" json:"type"`
	ID             *uint32 `yaml:"id,omitempty" json:"id,omitempty"`
	Key            bool    `yaml:"key,omitempty" json:"key,omitempty"`
	Optional       bool    `yaml:"optional,omitempty" json:"optional,omitempty"`
	MustUnderstand bool    `yaml:"must_understand,omitempty" json:"must_understand,omitempty"`
}

// CaseDeclaration is one union branch. An empty Type declares a void
// case.
type CaseDeclaration struct {
	Name    string  `yaml:"name" json:"name"`
	Type    string  `yaml:"type,omitempty" json:"type,omitempty"`
	Labels  []Label `yaml:"labels,omitempty" json:"labels,omitempty"`
	Default bool    `yaml:"default,omitempty" json:"default,omitempty"`
	ID      *uint32 `yaml:"id,omitempty" json:"id,omitempty"`
}

// LiteralDeclaration is one enumerator. Without an explicit Value it
// takes the previous enumerator's value plus one, starting at zero.
type LiteralDeclaration struct {
	Name    string `yaml:"name" json:"name"`
	Value   *int32 `yaml:"value,omitempty" json:"value,omitempty"`
	Default bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// FlagDeclaration is one bitmask flag. Without an explicit Position it
// takes the previous flag's position plus one, starting at zero.
type FlagDeclaration struct {
	Name     string  `yaml:"name" json:"name"`
	Position *uint16 `yaml:"position,omitempty" json:"position,omitempty"`
}

// Label is a union case label: an integer, or the name of an
// enumerator of the union's enum discriminator.
type Label struct {
	Value   int64
	Literal string
}

func (label Label) String() string {
	if label.Literal != "" {
		return label.Literal
	}
	return strconv.FormatInt(label.Value, 10)
}

// UnmarshalYAML accepts an integer or an enumerator name.
func (label *Label) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: case label must be a scalar", node.Line)
	}
	if node.ShortTag() == "!!int" {
		var value int64
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("line %d: case label: %w", node.Line, err)
		}
		*label = Label{Value: value}
		return nil
	}
	if node.Value == "" {
		return fmt.Errorf("line %d: empty case label", node.Line)
	}
	*label = Label{Literal: node.Value}
	return nil
}

// MarshalYAML writes the label back as an integer or a name.
func (label Label) MarshalYAML() (any, error) {
	if label.Literal != "" {
		return label.Literal, nil
	}
	return label.Value, nil
}

// UnmarshalJSON accepts an integer or an enumerator name.
func (label *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var literal string
		if err := json.Unmarshal(data, &literal); err != nil {
			return err
		}
		if literal == "" {
			return errors.New("empty case label")
		}
		*label = Label{Literal: literal}
		return nil
	}
	value, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("case label %s is neither an integer nor a string", data)
	}
	*label = Label{Value: value}
	return nil
}

// MarshalJSON writes the label back as an integer or a name.
func (label Label) MarshalJSON() ([]byte, error) {
	if label.Literal != "" {
		return json.Marshal(label.Literal)
	}
	return []byte(strconv.FormatInt(label.Value, 10)), nil
}

// name returns the declared name and the kind it selects.
func (declaration *Declaration) name() (string, string, error) {
	var kind, name string
	count := 0
	for _, candidate := range []struct{ kind, name string }{
		{"struct", declaration.Struct},
		{"union", declaration.Union},
		{"enum", declaration.Enum},
		{"bitmask", declaration.Bitmask},
		{"typedef", declaration.Typedef},
	} {
		if candidate.name != "" {
			kind, name = candidate.kind, candidate.name
			count++
		}
	}
	switch count {
	case 0:
		return "", "", errors.New("declaration names no struct, union, enum, bitmask, or typedef")
	case 1:
		return kind, name, nil
	}
	return "", "", fmt.Errorf("declaration of %q names more than one kind", name)
}

// Parse decodes a schema document. Unknown fields are errors.
func Parse(data []byte, format Format) (*File, error) {
	var file File
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing schema: %w", err)
		}
	case FormatJSONC:
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&file); err != nil {
			return nil, fmt.Errorf("parsing schema: %w", err)
		}
	default:
		return nil, fmt.Errorf("parsing schema: unsupported format %s", format)
	}
	return &file, nil
}

// ReadFile reads and decodes the schema file at path, choosing the
// format from its extension.
func ReadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}
