// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"sync"
)

// MaxMemberID is the largest member id an EMHEADER can carry.
const MaxMemberID = 0x0FFFFFFF

// normalizeMutex serializes normalization. Type graphs may share
// nodes, and normalization rewrites them in place.
var normalizeMutex sync.Mutex

// Normalize brings the graph rooted at t into canonical form:
//
//   - forward placeholders are replaced by their bound targets
//   - struct members of [Optional] type have the wrapper folded into
//     [Member.Optional]
//   - member and case ids are assigned
//   - every reachable type is validated
//
// Normalizing an already normalized graph is a no-op. The returned
// error describes the first invalid declaration found.
func Normalize(t *Type) error {
	normalizeMutex.Lock()
	defer normalizeMutex.Unlock()

	if t == nil {
		return fmt.Errorf("idl: cannot normalize nil type")
	}
	if t.normalized {
		return nil
	}
	walker := &normalizer{visited: make(map[*Type]bool)}
	if _, err := walker.reference(&t); err != nil {
		return err
	}
	for visited := range walker.visited {
		visited.normalized = true
	}
	return nil
}

type normalizer struct {
	visited map[*Type]bool
}

// reference replaces a forward placeholder in *slot with its target,
// then visits the target. It returns the resolved type.
func (n *normalizer) reference(slot **Type) (*Type, error) {
	resolved := *slot
	for hops := 0; resolved != nil && resolved.Kind == KindForward; hops++ {
		if resolved.target == nil {
			return nil, fmt.Errorf("idl: unbound forward reference to %q", resolved.Name)
		}
		if hops > 64 {
			return nil, fmt.Errorf("idl: forward reference cycle through %q", resolved.Name)
		}
		resolved = resolved.target
	}
	if resolved == nil {
		return nil, fmt.Errorf("idl: missing type")
	}
	*slot = resolved
	if err := n.visit(resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (n *normalizer) visit(t *Type) error {
	if t.normalized || n.visited[t] {
		return nil
	}
	n.visited[t] = true

	switch t.Kind {
	case KindBool, KindInt8, KindUint8, KindByte, KindChar, KindInt16, KindUint16,
		KindInt32, KindUint32, KindInt64, KindUint64, KindFloat32, KindFloat64, KindString:
		return nil

	case KindSequence:
		return n.element(t)

	case KindArray:
		if len(t.Dimensions) == 0 {
			return fmt.Errorf("idl: array has no dimensions")
		}
		for _, dimension := range t.Dimensions {
			if dimension == 0 {
				return fmt.Errorf("idl: array dimension must be positive")
			}
		}
		return n.element(t)

	case KindMap:
		key, err := n.reference(&t.KeyType)
		if err != nil {
			return fmt.Errorf("idl: map key: %w", err)
		}
		switch key.Underlying().Kind {
		case KindInt8, KindUint8, KindByte, KindChar, KindInt16, KindUint16, KindInt32,
			KindUint32, KindInt64, KindUint64, KindString:
		default:
			return fmt.Errorf("idl: map key must be an integer or string, got %s", key.Underlying().Kind)
		}
		return n.element(t)

	case KindAlias:
		if t.Name == "" {
			return fmt.Errorf("idl: typedef has no name")
		}
		if err := n.element(t); err != nil {
			return fmt.Errorf("idl: typedef %q: %w", t.Name, err)
		}
		return nil

	case KindStruct:
		return n.structure(t)

	case KindUnion:
		return n.union(t)

	case KindEnum:
		return validateEnum(t)

	case KindBitmask:
		return validateBitmask(t)

	case KindOptional:
		return fmt.Errorf("idl: optional is only valid as a struct member type")

	case KindForward:
		return fmt.Errorf("idl: unresolved forward reference to %q", t.Name)
	}
	return fmt.Errorf("idl: invalid type kind %s", t.Kind)
}

// element resolves and visits t.Element, which must not be optional.
func (n *normalizer) element(t *Type) error {
	if t.Element != nil && t.Element.Kind == KindOptional {
		return fmt.Errorf("idl: %s element cannot be optional", t.Kind)
	}
	_, err := n.reference(&t.Element)
	return err
}

func (n *normalizer) structure(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("idl: struct has no name")
	}
	names := make(map[string]bool, len(t.Members))
	ids := make(map[uint32]string, len(t.Members))
	next := uint32(0)
	for index := range t.Members {
		member := &t.Members[index]
		if member.Name == "" {
			return fmt.Errorf("idl: struct %q: member %d has no name", t.Name, index)
		}
		if names[member.Name] {
			return fmt.Errorf("idl: struct %q: duplicate member %q", t.Name, member.Name)
		}
		names[member.Name] = true

		if member.Type != nil && member.Type.Kind == KindOptional {
			member.Optional = true
			member.Type = member.Type.Element
		}
		if member.Type != nil && member.Type.Kind == KindOptional {
			return fmt.Errorf("idl: struct %q: member %q is doubly optional", t.Name, member.Name)
		}
		if _, err := n.reference(&member.Type); err != nil {
			return fmt.Errorf("idl: struct %q: member %q: %w", t.Name, member.Name, err)
		}
		if member.Key && member.Optional {
			return fmt.Errorf("idl: struct %q: key member %q cannot be optional", t.Name, member.Name)
		}

		member.ID, next = assignID(t.AutoID, member.Name, member.ID, member.HasID, next)
		member.HasID = true
		if member.ID > MaxMemberID {
			return fmt.Errorf("idl: struct %q: member %q id %d exceeds %d", t.Name, member.Name, member.ID, MaxMemberID)
		}
		if other, ok := ids[member.ID]; ok {
			return fmt.Errorf("idl: struct %q: members %q and %q share id %d", t.Name, other, member.Name, member.ID)
		}
		ids[member.ID] = member.Name
	}
	return nil
}

func (n *normalizer) union(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("idl: union has no name")
	}
	discriminator, err := n.reference(&t.Discriminator)
	if err != nil {
		return fmt.Errorf("idl: union %q: discriminator: %w", t.Name, err)
	}
	switch discriminator.Underlying().Kind {
	case KindBool, KindInt8, KindUint8, KindByte, KindChar, KindInt16, KindUint16,
		KindInt32, KindUint32, KindInt64, KindUint64, KindEnum:
	default:
		return fmt.Errorf("idl: union %q: invalid discriminator type %s", t.Name, discriminator.Underlying().Kind)
	}

	labels := make(map[int64]string)
	names := make(map[string]bool, len(t.Cases))
	ids := map[uint32]string{0: "discriminator"}
	hasDefault := false
	next := uint32(1)
	for index := range t.Cases {
		unionCase := &t.Cases[index]
		if unionCase.Name == "" {
			return fmt.Errorf("idl: union %q: case %d has no name", t.Name, index)
		}
		if names[unionCase.Name] {
			return fmt.Errorf("idl: union %q: duplicate case %q", t.Name, unionCase.Name)
		}
		names[unionCase.Name] = true
		if unionCase.Default {
			if hasDefault {
				return fmt.Errorf("idl: union %q: more than one default case", t.Name)
			}
			hasDefault = true
		} else if len(unionCase.Labels) == 0 {
			return fmt.Errorf("idl: union %q: case %q has no labels", t.Name, unionCase.Name)
		}
		for _, label := range unionCase.Labels {
			if other, ok := labels[label]; ok {
				return fmt.Errorf("idl: union %q: label %d used by %q and %q", t.Name, label, other, unionCase.Name)
			}
			labels[label] = unionCase.Name
		}
		if unionCase.Type != nil {
			if unionCase.Type.Kind == KindOptional {
				return fmt.Errorf("idl: union %q: case %q cannot be optional", t.Name, unionCase.Name)
			}
			if _, err := n.reference(&unionCase.Type); err != nil {
				return fmt.Errorf("idl: union %q: case %q: %w", t.Name, unionCase.Name, err)
			}
		}

		unionCase.ID, next = assignID(t.AutoID, unionCase.Name, unionCase.ID, unionCase.HasID, next)
		unionCase.HasID = true
		if unionCase.ID > MaxMemberID {
			return fmt.Errorf("idl: union %q: case %q id %d exceeds %d", t.Name, unionCase.Name, unionCase.ID, MaxMemberID)
		}
		if other, ok := ids[unionCase.ID]; ok {
			return fmt.Errorf("idl: union %q: %q and %q share id %d", t.Name, other, unionCase.Name, unionCase.ID)
		}
		ids[unionCase.ID] = unionCase.Name
	}
	return nil
}

// assignID returns the id for a member and the next sequential id.
func assignID(mode AutoID, name string, explicit uint32, hasID bool, next uint32) (uint32, uint32) {
	var id uint32
	switch {
	case hasID:
		id = explicit
	case mode == AutoIDHash:
		id = HashMemberID(name)
	default:
		id = next
	}
	return id, id + 1
}

func validateEnum(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("idl: enum has no name")
	}
	if len(t.Literals) == 0 {
		return fmt.Errorf("idl: enum %q has no enumerators", t.Name)
	}
	if t.BitBound == 0 {
		t.BitBound = 32
	}
	if t.BitBound > 32 {
		return fmt.Errorf("idl: enum %q: bit bound %d exceeds 32", t.Name, t.BitBound)
	}
	names := make(map[string]bool, len(t.Literals))
	values := make(map[int32]string, len(t.Literals))
	defaults := 0
	for _, literal := range t.Literals {
		if names[literal.Name] {
			return fmt.Errorf("idl: enum %q: duplicate enumerator %q", t.Name, literal.Name)
		}
		names[literal.Name] = true
		if other, ok := values[literal.Value]; ok {
			return fmt.Errorf("idl: enum %q: %q and %q share value %d", t.Name, other, literal.Name, literal.Value)
		}
		values[literal.Value] = literal.Name
		if t.BitBound < 32 && (literal.Value < 0 || int64(literal.Value) >= int64(1)<<t.BitBound) {
			return fmt.Errorf("idl: enum %q: value %d of %q exceeds bit bound %d", t.Name, literal.Value, literal.Name, t.BitBound)
		}
		if literal.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("idl: enum %q has %d default enumerators", t.Name, defaults)
	}
	return nil
}

func validateBitmask(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("idl: bitmask has no name")
	}
	if t.BitBound == 0 {
		t.BitBound = 32
	}
	if t.BitBound > 64 {
		return fmt.Errorf("idl: bitmask %q: bit bound %d exceeds 64", t.Name, t.BitBound)
	}
	names := make(map[string]bool, len(t.Flags))
	positions := make(map[uint16]string, len(t.Flags))
	for _, flag := range t.Flags {
		if names[flag.Name] {
			return fmt.Errorf("idl: bitmask %q: duplicate flag %q", t.Name, flag.Name)
		}
		names[flag.Name] = true
		if flag.Position >= t.BitBound {
			return fmt.Errorf("idl: bitmask %q: flag %q position %d outside bit bound %d", t.Name, flag.Name, flag.Position, t.BitBound)
		}
		if other, ok := positions[flag.Position]; ok {
			return fmt.Errorf("idl: bitmask %q: %q and %q share position %d", t.Name, other, flag.Name, flag.Position)
		}
		positions[flag.Position] = flag.Name
	}
	return nil
}
