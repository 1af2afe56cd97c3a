// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

// builder compiles a normalized type graph into one machine tree. The
// built map holds every struct and union machine, registered before its
// members are built, so recursive references resolve to the machine
// under construction instead of recursing.
type builder struct {
	xcdr2 bool
	root  *idl.Type
	built map[*idl.Type]machine
}

func newBuilder(root *idl.Type, xcdr2 bool) *builder {
	return &builder{xcdr2: xcdr2, root: root, built: make(map[*idl.Type]machine)}
}

func (b *builder) machineFor(t *idl.Type) (machine, error) {
	switch t.Kind {
	case idl.KindBool, idl.KindInt8, idl.KindUint8, idl.KindByte, idl.KindChar,
		idl.KindInt16, idl.KindUint16, idl.KindInt32, idl.KindUint32,
		idl.KindInt64, idl.KindUint64, idl.KindFloat32, idl.KindFloat64:
		return newScalarMachine(t.Kind), nil
	case idl.KindString:
		return &stringMachine{bound: t.Bound}, nil
	case idl.KindEnum:
		return newEnumMachine(t, b.xcdr2), nil
	case idl.KindBitmask:
		return newBitmaskMachine(t), nil
	case idl.KindSequence:
		return b.sequence(t)
	case idl.KindArray:
		return b.array(t.String(), t.Element, t.Dimensions, true)
	case idl.KindMap:
		return b.mapping(t)
	case idl.KindAlias:
		return b.machineFor(t.Element)
	case idl.KindStruct:
		return b.structure(t)
	case idl.KindUnion:
		return b.union(t)
	case idl.KindOptional:
		return nil, fmt.Errorf("cdr: optional %s outside a struct member", t.Element)
	case idl.KindForward:
		return nil, fmt.Errorf("cdr: unresolved forward reference to %q", t.Name)
	case idl.KindInvalid:
		return nil, fmt.Errorf("cdr: invalid type")
	}
	return nil, fmt.Errorf("cdr: unknown type kind %s", t.Kind)
}

// primitiveLike reports whether collections of t are never delimited.
func primitiveLike(t *idl.Type) bool {
	underlying := t.Underlying()
	return underlying.Kind.IsPrimitive() || underlying.Kind == idl.KindEnum || underlying.Kind == idl.KindBitmask
}

func (b *builder) sequence(t *idl.Type) (machine, error) {
	if element := t.Element.Underlying(); element.Kind.IsPrimitive() {
		return newPrimitiveCollection(element.Kind, true, t.Bound, 0), nil
	}
	element, err := b.machineFor(t.Element)
	if err != nil {
		return nil, err
	}
	return &sequenceMachine{
		name:      t.String(),
		element:   element,
		bound:     t.Bound,
		delimited: b.xcdr2 && !primitiveLike(t.Element),
	}, nil
}

// array builds one machine per dimension, outermost first. The
// innermost dimension of a primitive array is a bulk machine.
func (b *builder) array(name string, element *idl.Type, dimensions []uint32, outermost bool) (machine, error) {
	if len(dimensions) == 1 {
		if underlying := element.Underlying(); underlying.Kind.IsPrimitive() {
			return newPrimitiveCollection(underlying.Kind, false, 0, dimensions[0]), nil
		}
	}
	var inner machine
	var err error
	if len(dimensions) == 1 {
		inner, err = b.machineFor(element)
	} else {
		inner, err = b.array(name, element, dimensions[1:], false)
	}
	if err != nil {
		return nil, err
	}
	return &arrayMachine{
		name:      name,
		element:   inner,
		length:    dimensions[0],
		delimited: outermost && b.xcdr2 && !primitiveLike(element),
	}, nil
}

func (b *builder) mapping(t *idl.Type) (machine, error) {
	key, err := b.machineFor(t.KeyType)
	if err != nil {
		return nil, err
	}
	value, err := b.machineFor(t.Element)
	if err != nil {
		return nil, err
	}
	return &mapMachine{
		name:      t.String(),
		key:       key,
		value:     value,
		bound:     t.Bound,
		delimited: b.xcdr2 && !(primitiveLike(t.KeyType) && primitiveLike(t.Element)),
	}, nil
}

// extensibility returns the framing used for t in this tree. Basic CDR
// encodes a root appendable type as final.
func (b *builder) extensibility(t *idl.Type) (idl.Extensibility, error) {
	if b.xcdr2 || t.Extensibility == idl.Final {
		return t.Extensibility, nil
	}
	if t.Extensibility == idl.Appendable && t == b.root {
		return idl.Final, nil
	}
	return 0, fmt.Errorf("%w: %s %s cannot be encoded in basic CDR", ErrUnsupportedEncoding, t.Extensibility, t.Name)
}

func (b *builder) structure(t *idl.Type) (machine, error) {
	if built, ok := b.built[t]; ok {
		return built, nil
	}
	extensibility, err := b.extensibility(t)
	if err != nil {
		return nil, err
	}
	var core *structCore
	var built machine
	switch extensibility {
	case idl.Final:
		final := &finalStruct{}
		core, built = &final.structCore, final
	case idl.Appendable:
		appendable := &appendableStruct{}
		core, built = &appendable.structCore, appendable
	case idl.Mutable:
		mutable := &mutableStruct{}
		core, built = &mutable.structCore, mutable
	}
	core.name = t.Name
	b.built[t] = built

	for _, member := range t.Members {
		inner, err := b.machineFor(member.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, member.Name, err)
		}
		if member.Optional && !b.xcdr2 {
			return nil, fmt.Errorf("%w: optional member %s.%s requires XCDR2", ErrUnsupportedEncoding, t.Name, member.Name)
		}
		if member.Optional && extensibility != idl.Mutable {
			inner = &optionalMachine{inner: inner}
		}
		core.members = append(core.members, memberMachine{
			name:           member.Name,
			id:             member.ID,
			key:            member.Key,
			optional:       member.Optional,
			mustUnderstand: member.MustUnderstand,
			machine:        inner,
		})
	}
	core.finish(extensibility == idl.Mutable)
	return built, nil
}

func (b *builder) union(t *idl.Type) (machine, error) {
	if built, ok := b.built[t]; ok {
		return built, nil
	}
	extensibility, err := b.extensibility(t)
	if err != nil {
		return nil, err
	}
	var core *unionCore
	var built machine
	switch extensibility {
	case idl.Final:
		final := &finalUnion{}
		core, built = &final.unionCore, final
	case idl.Appendable:
		appendable := &appendableUnion{}
		core, built = &appendable.unionCore, appendable
	case idl.Mutable:
		mutable := &mutableUnion{}
		core, built = &mutable.unionCore, mutable
	}
	core.name = t.Name
	core.declaration = t
	core.keyDiscriminatorOnly = t.KeyDiscriminator
	b.built[t] = built

	discriminator, err := b.machineFor(t.Discriminator)
	if err != nil {
		return nil, fmt.Errorf("%s discriminator: %w", t.Name, err)
	}
	typed, ok := discriminator.(discriminatorMachine)
	if !ok {
		return nil, fmt.Errorf("cdr: %s cannot discriminate union %s", t.Discriminator, t.Name)
	}
	core.discriminator = typed

	for _, unionCase := range t.Cases {
		built := caseMachine{
			name:      unionCase.Name,
			id:        unionCase.ID,
			labels:    unionCase.Labels,
			isDefault: unionCase.Default,
		}
		if unionCase.Type != nil {
			if built.machine, err = b.machineFor(unionCase.Type); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name, unionCase.Name, err)
			}
		}
		core.cases = append(core.cases, built)
	}
	return built, nil
}

// basicSupport reports why the graph rooted at root cannot be encoded
// in basic CDR, or nil when it can: optional members, mutable types,
// and appendable types other than the root all need XCDR2.
func basicSupport(root *idl.Type) error {
	visited := make(map[*idl.Type]bool)
	var walk func(t *idl.Type) error
	walk = func(t *idl.Type) error {
		if t == nil || visited[t] {
			return nil
		}
		visited[t] = true
		switch t.Kind {
		case idl.KindStruct, idl.KindUnion:
			if t.Extensibility == idl.Mutable || (t.Extensibility == idl.Appendable && t != root) {
				return fmt.Errorf("%w: %s %s needs XCDR2", ErrUnsupportedEncoding, t.Extensibility, t.Name)
			}
			for _, member := range t.Members {
				if member.Optional {
					return fmt.Errorf("%w: optional member %s.%s needs XCDR2", ErrUnsupportedEncoding, t.Name, member.Name)
				}
				if err := walk(member.Type); err != nil {
					return err
				}
			}
			if err := walk(t.Discriminator); err != nil {
				return err
			}
			for _, unionCase := range t.Cases {
				if err := walk(unionCase.Type); err != nil {
					return err
				}
			}
		case idl.KindSequence, idl.KindArray, idl.KindAlias:
			return walk(t.Element)
		case idl.KindMap:
			if err := walk(t.KeyType); err != nil {
				return err
			}
			return walk(t.Element)
		}
		return nil
	}
	return walk(root)
}

// checkKeyPath rejects optional members reachable through the key
// members of root. Nested structs without declared keys contribute all
// their members.
func checkKeyPath(root *idl.Type) error {
	if root.Kind != idl.KindStruct {
		return nil
	}
	visited := map[*idl.Type]bool{root: true}
	var walk func(t *idl.Type) error
	walk = func(t *idl.Type) error {
		t = t.Underlying()
		if t == nil || visited[t] {
			return nil
		}
		visited[t] = true
		switch t.Kind {
		case idl.KindStruct:
			declared := len(t.KeyMembers()) > 0
			for _, member := range t.Members {
				if declared && !member.Key {
					continue
				}
				if member.Optional {
					return fmt.Errorf("cdr: optional member %s.%s is part of the key of %s", t.Name, member.Name, root.Name)
				}
				if err := walk(member.Type); err != nil {
					return err
				}
			}
		case idl.KindUnion:
			if err := walk(t.Discriminator); err != nil {
				return err
			}
			if t.KeyDiscriminator {
				return nil
			}
			for _, unionCase := range t.Cases {
				if unionCase.Type != nil {
					if err := walk(unionCase.Type); err != nil {
						return err
					}
				}
			}
		case idl.KindSequence, idl.KindArray:
			return walk(t.Element)
		case idl.KindMap:
			if err := walk(t.KeyType); err != nil {
				return err
			}
			return walk(t.Element)
		}
		return nil
	}
	for _, member := range root.KeyMembers() {
		if err := walk(member.Type); err != nil {
			return err
		}
	}
	return nil
}
