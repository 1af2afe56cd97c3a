// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idlschema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

// Loader builds types from schema files. Add every file, then call
// Load once. A Loader is not safe for concurrent use.
type Loader struct {
	namespace *idl.Namespace
	pending   []pendingDeclaration
	loaded    bool
}

type pendingDeclaration struct {
	source      string
	module      string
	declaration Declaration
	declared    *idl.Type
}

// NewLoader returns an empty loader.
func NewLoader() *Loader {
	return &Loader{namespace: idl.NewNamespace()}
}

// AddFile reads the schema file at path and declares its types.
func (l *Loader) AddFile(path string) error {
	file, err := ReadFile(path)
	if err != nil {
		return err
	}
	return l.Add(path, file)
}

// Add declares the named types of file. Type expressions are not
// evaluated until Load, so they may refer to types added later. source
// names the file in error messages.
func (l *Loader) Add(source string, file *File) error {
	if l.loaded {
		return errors.New("idlschema: Add called after Load")
	}
	module := strings.Trim(file.Module, ":")
	var errs []error
	for _, declaration := range file.Types {
		declared, err := declare(module, &declaration)
		if err == nil {
			err = l.namespace.Declare(declared)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
			continue
		}
		l.pending = append(l.pending, pendingDeclaration{
			source:      source,
			module:      module,
			declaration: declaration,
			declared:    declared,
		})
	}
	return errors.Join(errs...)
}

// Load evaluates every type expression, binds references between
// declarations, and normalizes the result. The returned namespace
// holds every declared type by qualified name.
func (l *Loader) Load() (*idl.Namespace, error) {
	if l.loaded {
		return nil, errors.New("idlschema: Load called twice")
	}
	l.loaded = true

	var errs []error
	for index := range l.pending {
		if err := l.define(&l.pending[index]); err != nil {
			errs = append(errs, err)
		}
	}
	// Enumerator labels need the discriminator, which may be a typedef
	// defined by a later declaration.
	for index := range l.pending {
		if err := l.labels(&l.pending[index]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := l.namespace.Resolve(); err != nil {
		return nil, err
	}
	return l.namespace, nil
}

// LoadFiles reads every schema file and returns the loaded namespace.
func LoadFiles(paths ...string) (*idl.Namespace, error) {
	loader := NewLoader()
	var errs []error
	for _, path := range paths {
		if err := loader.AddFile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return loader.Load()
}

func qualify(module, name string) string {
	if module == "" {
		return name
	}
	return module + "::" + name
}

// declare creates the named type for a declaration. Enums and bitmasks
// are complete after this step; the others are filled in by define.
func declare(module string, declaration *Declaration) (*idl.Type, error) {
	kind, name, err := declaration.name()
	if err != nil {
		return nil, err
	}
	qualified := qualify(module, strings.TrimPrefix(name, "::"))

	switch kind {
	case "struct":
		extensibility, err := idl.ParseExtensibility(declaration.Extensibility)
		if err != nil {
			return nil, fmt.Errorf("struct %q: %w", qualified, err)
		}
		structure := idl.NewStruct(qualified, extensibility)
		switch declaration.AutoID {
		case "", "sequential":
			structure.AutoID = idl.AutoIDSequential
		case "hash":
			structure.AutoID = idl.AutoIDHash
		default:
			return nil, fmt.Errorf("struct %q: unknown autoid %q", qualified, declaration.AutoID)
		}
		structure.Nested = declaration.Nested
		return structure, nil

	case "union":
		extensibility, err := idl.ParseExtensibility(declaration.Extensibility)
		if err != nil {
			return nil, fmt.Errorf("union %q: %w", qualified, err)
		}
		union := idl.NewUnion(qualified, nil, extensibility)
		union.Nested = declaration.Nested
		union.KeyDiscriminator = declaration.KeyDiscriminator
		return union, nil

	case "enum":
		enum := &idl.Type{Kind: idl.KindEnum, Name: qualified, BitBound: declaration.BitBound}
		next := int32(0)
		for _, literal := range declaration.Literals {
			if literal.Value != nil {
				next = *literal.Value
			}
			enum.Literals = append(enum.Literals, idl.Literal{Name: literal.Name, Value: next, Default: literal.Default})
			next++
		}
		return enum, nil

	case "bitmask":
		bitmask := &idl.Type{Kind: idl.KindBitmask, Name: qualified, BitBound: declaration.BitBound}
		next := uint16(0)
		for _, flag := range declaration.Flags {
			if flag.Position != nil {
				next = *flag.Position
			}
			bitmask.Flags = append(bitmask.Flags, idl.Flag{Name: flag.Name, Position: next})
			next++
		}
		return bitmask, nil
	}
	return idl.Alias(qualified, nil), nil
}

// lookup resolves a name used inside module: an absolute "::" name
// directly, otherwise the innermost enclosing module that declares it.
func (l *Loader) lookup(module string) LookupFunc {
	return func(name string) (*idl.Type, bool) {
		if absolute, ok := strings.CutPrefix(name, "::"); ok {
			return l.namespace.Lookup(absolute)
		}
		for scope := module; scope != ""; {
			if declared, ok := l.namespace.Lookup(scope + "::" + name); ok {
				return declared, true
			}
			separator := strings.LastIndex(scope, "::")
			if separator < 0 {
				break
			}
			scope = scope[:separator]
		}
		return l.namespace.Lookup(name)
	}
}

func (l *Loader) define(pending *pendingDeclaration) error {
	declared := pending.declared
	declaration := &pending.declaration
	lookup := l.lookup(pending.module)
	wrap := func(err error) error {
		return fmt.Errorf("%s: %s %q: %w", pending.source, declared.Kind, declared.Name, err)
	}

	switch declared.Kind {
	case idl.KindStruct:
		members := make([]idl.Member, 0, len(declaration.Members))
		for _, member := range declaration.Members {
			memberType, err := ParseType(member.Type, lookup)
			if err != nil {
				return wrap(fmt.Errorf("member %q: %w", member.Name, err))
			}
			defined := idl.Member{
				Name:           member.Name,
				Type:           memberType,
				Key:            member.Key,
				Optional:       member.Optional,
				MustUnderstand: member.MustUnderstand,
			}
			if member.ID != nil {
				defined.ID, defined.HasID = *member.ID, true
			}
			members = append(members, defined)
		}
		declared.SetMembers(members...)

	case idl.KindUnion:
		if declaration.Discriminator == "" {
			return wrap(errors.New("no discriminator"))
		}
		discriminator, err := ParseType(declaration.Discriminator, lookup)
		if err != nil {
			return wrap(fmt.Errorf("discriminator: %w", err))
		}
		declared.Discriminator = discriminator
		cases := make([]idl.Case, 0, len(declaration.Cases))
		for _, unionCase := range declaration.Cases {
			defined := idl.Case{Name: unionCase.Name, Default: unionCase.Default}
			if unionCase.Type != "" {
				if defined.Type, err = ParseType(unionCase.Type, lookup); err != nil {
					return wrap(fmt.Errorf("case %q: %w", unionCase.Name, err))
				}
			}
			if unionCase.ID != nil {
				defined.ID, defined.HasID = *unionCase.ID, true
			}
			cases = append(cases, defined)
		}
		declared.SetCases(cases...)

	case idl.KindAlias:
		if declaration.Type == "" {
			return wrap(errors.New("no target type"))
		}
		target, err := ParseType(declaration.Type, lookup)
		if err != nil {
			return wrap(err)
		}
		declared.Element = target
	}
	return nil
}

// labels fills in union case labels, looking up enumerator names in the
// discriminator's enum.
func (l *Loader) labels(pending *pendingDeclaration) error {
	declared := pending.declared
	if declared.Kind != idl.KindUnion || declared.Discriminator == nil {
		return nil
	}
	discriminator := declared.Discriminator.Underlying()
	for index, unionCase := range pending.declaration.Cases {
		labels := make([]int64, 0, len(unionCase.Labels))
		for _, label := range unionCase.Labels {
			if label.Literal == "" {
				labels = append(labels, label.Value)
				continue
			}
			value, err := enumeratorValue(discriminator, label.Literal)
			if err != nil {
				return fmt.Errorf("%s: union %q: case %q: %w", pending.source, declared.Name, unionCase.Name, err)
			}
			labels = append(labels, value)
		}
		declared.Cases[index].Labels = labels
	}
	return nil
}

func enumeratorValue(discriminator *idl.Type, name string) (int64, error) {
	if discriminator == nil || discriminator.Kind != idl.KindEnum {
		return 0, fmt.Errorf("label %q names an enumerator but the discriminator is %s", name, discriminator)
	}
	// Accept both "moving" and "Status::moving".
	name = name[strings.LastIndex(name, ":")+1:]
	for _, literal := range discriminator.Literals {
		if literal.Name == name {
			return int64(literal.Value), nil
		}
	}
	return 0, fmt.Errorf("enum %q has no enumerator %q", discriminator.Name, name)
}
