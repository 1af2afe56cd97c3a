// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package xtypes

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/bureau-foundation/xcdr/lib/idl"
)

var equivalenceKinds = [2]EquivalenceKind{EquivalenceMinimal, EquivalenceComplete}

var primitiveIdentifiers = map[idl.Kind]IdentifierKind{
	idl.KindBool:    IdentifierBoolean,
	idl.KindInt8:    IdentifierInt8,
	idl.KindUint8:   IdentifierUint8,
	idl.KindByte:    IdentifierByte,
	idl.KindChar:    IdentifierChar8,
	idl.KindInt16:   IdentifierInt16,
	idl.KindUint16:  IdentifierUint16,
	idl.KindInt32:   IdentifierInt32,
	idl.KindUint32:  IdentifierUint32,
	idl.KindInt64:   IdentifierInt64,
	idl.KindUint64:  IdentifierUint64,
	idl.KindFloat32: IdentifierFloat32,
	idl.KindFloat64: IdentifierFloat64,
}

// lookupFunc returns the identifier of a named type.
type lookupFunc func(t *idl.Type, kind EquivalenceKind) (TypeIdentifier, error)

// Builder computes TypeObjects and identifiers for declarations.
// Results land in its [Cache]; a Builder holds no other state and is
// safe for concurrent use.
type Builder struct {
	cache *Cache
}

// NewBuilder returns a builder that records results in cache. A nil
// cache gets a private one.
func NewBuilder(cache *Cache) *Builder {
	if cache == nil {
		cache = NewCache()
	}
	return &Builder{cache: cache}
}

// Cache returns the builder's cache.
func (b *Builder) Cache() *Cache { return b.cache }

// prepare normalizes t and hashes every named type reachable from it.
func (b *Builder) prepare(t *idl.Type) (*idl.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("xtypes: nil type")
	}
	if err := idl.Normalize(t); err != nil {
		return nil, err
	}
	if t.Kind == idl.KindForward {
		t = t.Target()
	}
	if err := b.resolve(t); err != nil {
		return nil, err
	}
	return t, nil
}

// TypeHash returns the identity of a named type (struct, union, enum,
// bitmask, or typedef).
func (b *Builder) TypeHash(t *idl.Type) (*TypeHash, error) {
	t, err := b.prepare(t)
	if err != nil {
		return nil, err
	}
	if !t.Kind.IsNamed() {
		return nil, fmt.Errorf("xtypes: %s has no TypeObject", t)
	}
	hash, ok := b.cache.Get(t)
	if !ok {
		return nil, fmt.Errorf("xtypes: %s was not hashed", t.Name)
	}
	return hash, nil
}

// TypeIdentifier returns the identifier of any type in the given
// description.
func (b *Builder) TypeIdentifier(t *idl.Type, kind EquivalenceKind) (TypeIdentifier, error) {
	if kind != EquivalenceMinimal && kind != EquivalenceComplete {
		return TypeIdentifier{}, fmt.Errorf("xtypes: no identifiers of kind %s", kind)
	}
	t, err := b.prepare(t)
	if err != nil {
		return TypeIdentifier{}, err
	}
	return identifierOf(t, kind, b.lookup)
}

// TypeInformation returns what discovery announces for a named type:
// its identifiers, object sizes, and dependencies in both descriptions.
func (b *Builder) TypeInformation(t *idl.Type) (TypeInformation, error) {
	hash, err := b.TypeHash(t)
	if err != nil {
		return TypeInformation{}, err
	}
	dependencies, err := b.dependencies(t)
	if err != nil {
		return TypeInformation{}, err
	}
	describe := func(kind EquivalenceKind) TypeIdentifierWithDependencies {
		_, data, id := hash.Object(kind)
		result := TypeIdentifierWithDependencies{
			Type:           TypeIdentifierWithSize{ID: id, SerializedSize: uint32(len(data))},
			DependentCount: int32(len(dependencies)),
		}
		for _, dependency := range dependencies {
			_, data, id := dependency.Object(kind)
			result.Dependencies = append(result.Dependencies, TypeIdentifierWithSize{ID: id, SerializedSize: uint32(len(data))})
		}
		return result
	}
	return TypeInformation{
		Minimal:  describe(EquivalenceMinimal),
		Complete: describe(EquivalenceComplete),
	}, nil
}

// TypeMapping returns the TypeObjects of a named type and of every
// named type it depends on, enough for a peer to rebuild it.
func (b *Builder) TypeMapping(t *idl.Type) (TypeMapping, error) {
	hash, err := b.TypeHash(t)
	if err != nil {
		return TypeMapping{}, err
	}
	dependencies, err := b.dependencies(t)
	if err != nil {
		return TypeMapping{}, err
	}
	var mapping TypeMapping
	for _, entry := range append([]*TypeHash{hash}, dependencies...) {
		mapping.Minimal = append(mapping.Minimal, TypeIdentifierTypeObjectPair{ID: entry.MinimalID, Object: entry.Minimal})
		mapping.Complete = append(mapping.Complete, TypeIdentifierTypeObjectPair{ID: entry.CompleteID, Object: entry.Complete})
		mapping.CompleteToMinimal = append(mapping.CompleteToMinimal, TypeIdentifierPair{First: entry.CompleteID, Second: entry.MinimalID})
	}
	return mapping, nil
}

// dependencies returns the hashes of the named types reachable from
// root, excluding root, in breadth-first order.
func (b *Builder) dependencies(root *idl.Type) ([]*TypeHash, error) {
	if root.Kind == idl.KindForward {
		root = root.Target()
	}
	seen := map[*idl.Type]bool{root: true}
	queue := []*idl.Type{root}
	var dependencies []*TypeHash
	for head := 0; head < len(queue); head++ {
		for _, reference := range namedReferences(queue[head]) {
			if seen[reference] {
				continue
			}
			seen[reference] = true
			queue = append(queue, reference)
			hash, ok := b.cache.Get(reference)
			if !ok {
				return nil, fmt.Errorf("xtypes: %s was not hashed", reference.Name)
			}
			dependencies = append(dependencies, hash)
		}
	}
	return dependencies, nil
}

func (b *Builder) lookup(t *idl.Type, kind EquivalenceKind) (TypeIdentifier, error) {
	hash, ok := b.cache.Get(t)
	if !ok {
		return TypeIdentifier{}, fmt.Errorf("xtypes: %s referenced before it was hashed", t.Name)
	}
	_, _, id := hash.Object(kind)
	return id, nil
}

// resolve hashes every uncached named type reachable from root,
// dependencies first.
func (b *Builder) resolve(root *idl.Type) error {
	nodes, edges := b.gather(root)
	if len(nodes) == 0 {
		return nil
	}

	// Leaves reference nothing uncached and hash on their own.
	for index, node := range nodes {
		if len(edges[index]) == 0 {
			if err := b.hashSingle(node); err != nil {
				return err
			}
		}
	}

	for _, component := range stronglyConnectedComponents(edges) {
		first := component[0]
		if _, cached := b.cache.Get(nodes[first]); cached {
			continue
		}
		if len(component) == 1 && !slices.Contains(edges[first], first) {
			if err := b.hashSingle(nodes[first]); err != nil {
				return err
			}
			continue
		}
		types := make([]*idl.Type, len(component))
		for index, node := range component {
			types[index] = nodes[node]
		}
		if err := b.hashComponent(types); err != nil {
			return err
		}
	}
	return nil
}

// gather walks the named types reachable from root breadth first and
// returns those not yet cached, with the reference edges between them.
func (b *Builder) gather(root *idl.Type) ([]*idl.Type, [][]int) {
	var nodes []*idl.Type
	var edges [][]int
	index := make(map[*idl.Type]int)
	add := func(t *idl.Type) (int, bool) {
		if position, ok := index[t]; ok {
			return position, true
		}
		if _, cached := b.cache.Get(t); cached {
			return 0, false
		}
		index[t] = len(nodes)
		nodes = append(nodes, t)
		edges = append(edges, nil)
		return len(nodes) - 1, true
	}

	if root.Kind.IsNamed() {
		add(root)
	} else {
		var references []*idl.Type
		collectNamed(root, &references)
		for _, reference := range references {
			add(reference)
		}
	}
	for head := 0; head < len(nodes); head++ {
		for _, reference := range namedReferences(nodes[head]) {
			target, ok := add(reference)
			if ok && !slices.Contains(edges[head], target) {
				edges[head] = append(edges[head], target)
			}
		}
	}
	return nodes, edges
}

// namedReferences returns the named types a named type's TypeObject
// refers to by hash.
func namedReferences(t *idl.Type) []*idl.Type {
	var references []*idl.Type
	switch t.Kind {
	case idl.KindStruct:
		for _, member := range t.Members {
			collectNamed(member.Type, &references)
		}
	case idl.KindUnion:
		collectNamed(t.Discriminator, &references)
		for _, unionCase := range t.Cases {
			collectNamed(unionCase.Type, &references)
		}
	case idl.KindAlias:
		collectNamed(t.Element, &references)
	}
	return references
}

// collectNamed appends the named types t refers to, looking through
// anonymous collections.
func collectNamed(t *idl.Type, references *[]*idl.Type) {
	switch {
	case t == nil:
	case t.Kind.IsNamed():
		*references = append(*references, t)
	case t.Kind == idl.KindSequence || t.Kind == idl.KindArray:
		collectNamed(t.Element, references)
	case t.Kind == idl.KindMap:
		collectNamed(t.KeyType, references)
		collectNamed(t.Element, references)
	}
}

func (b *Builder) hashSingle(t *idl.Type) error {
	hash := &TypeHash{Name: t.Name}
	for _, kind := range equivalenceKinds {
		object, err := objectOf(t, kind, b.lookup)
		if err != nil {
			return err
		}
		data, err := MarshalTypeObject(object)
		if err != nil {
			return err
		}
		hash.set(kind, object, data, HashIdentifier(kind, HashOf(data)))
	}
	b.cache.put([]*idl.Type{t}, []*TypeHash{hash})
	return nil
}

// hashComponent hashes the types of one reference cycle together. The
// members are ordered by name and serialized as one sequence with every
// reference into the component replaced by a placeholder holding a
// zero hash; the digest of that sequence names the component, and each
// member is identified by the component hash, its length, and its
// 1-based position.
func (b *Builder) hashComponent(types []*idl.Type) error {
	sorted := slices.Clone(types)
	slices.SortFunc(sorted, func(left, right *idl.Type) int { return cmp.Compare(left.Name, right.Name) })
	for index := 1; index < len(sorted); index++ {
		if sorted[index].Name == sorted[index-1].Name {
			return fmt.Errorf("xtypes: two types named %q in one reference cycle", sorted[index].Name)
		}
	}
	length := int32(len(sorted))
	position := make(map[*idl.Type]int32, len(sorted))
	hashes := make([]*TypeHash, len(sorted))
	for index, t := range sorted {
		position[t] = int32(index + 1)
		hashes[index] = &TypeHash{Name: t.Name}
	}

	for _, kind := range equivalenceKinds {
		var componentHash EquivalenceHash
		within := func(t *idl.Type, kind EquivalenceKind) (TypeIdentifier, error) {
			if index, ok := position[t]; ok {
				return ComponentIdentifier(kind, componentHash, length, index), nil
			}
			return b.lookup(t, kind)
		}
		placeholders, err := objectsOf(sorted, kind, within)
		if err != nil {
			return err
		}
		data, err := marshalTypeObjects(placeholders)
		if err != nil {
			return err
		}
		componentHash = HashOf(data)

		objects, err := objectsOf(sorted, kind, within)
		if err != nil {
			return err
		}
		for index, object := range objects {
			data, err := MarshalTypeObject(object)
			if err != nil {
				return err
			}
			hashes[index].set(kind, object, data, ComponentIdentifier(kind, componentHash, length, int32(index+1)))
		}
	}
	b.cache.put(sorted, hashes)
	return nil
}

func (hash *TypeHash) set(kind EquivalenceKind, object TypeObject, data []byte, id TypeIdentifier) {
	if kind == EquivalenceMinimal {
		hash.Minimal, hash.MinimalBytes, hash.MinimalID = object, data, id
	} else {
		hash.Complete, hash.CompleteBytes, hash.CompleteID = object, data, id
	}
}

func objectsOf(types []*idl.Type, kind EquivalenceKind, lookup lookupFunc) ([]TypeObject, error) {
	objects := make([]TypeObject, len(types))
	for index, t := range types {
		object, err := objectOf(t, kind, lookup)
		if err != nil {
			return nil, err
		}
		objects[index] = object
	}
	return objects, nil
}

// identifierOf returns the identifier of t, asking lookup for named
// types.
func identifierOf(t *idl.Type, kind EquivalenceKind, lookup lookupFunc) (TypeIdentifier, error) {
	if primitiveKind, ok := primitiveIdentifiers[t.Kind]; ok {
		return Primitive(primitiveKind), nil
	}
	switch t.Kind {
	case idl.KindString:
		return StringIdentifier(t.Bound), nil
	case idl.KindSequence:
		element, err := identifierOf(t.Element, kind, lookup)
		if err != nil {
			return TypeIdentifier{}, err
		}
		return SequenceIdentifier(element, t.Bound, kind), nil
	case idl.KindArray:
		element, err := identifierOf(t.Element, kind, lookup)
		if err != nil {
			return TypeIdentifier{}, err
		}
		return ArrayIdentifier(element, t.Dimensions, kind), nil
	case idl.KindMap:
		key, err := identifierOf(t.KeyType, kind, lookup)
		if err != nil {
			return TypeIdentifier{}, err
		}
		element, err := identifierOf(t.Element, kind, lookup)
		if err != nil {
			return TypeIdentifier{}, err
		}
		return MapIdentifier(key, element, t.Bound, kind), nil
	case idl.KindStruct, idl.KindUnion, idl.KindEnum, idl.KindBitmask, idl.KindAlias:
		return lookup(t, kind)
	}
	return TypeIdentifier{}, fmt.Errorf("xtypes: no identifier for %s type", t.Kind)
}

func typeFlags(t *idl.Type) uint16 {
	var flags uint16
	switch t.Extensibility {
	case idl.Final:
		flags = TypeFinal
	case idl.Appendable:
		flags = TypeAppendable
	case idl.Mutable:
		flags = TypeMutable
	}
	if t.Nested {
		flags |= TypeNested
	}
	if t.AutoID == idl.AutoIDHash {
		flags |= TypeAutoIDHash
	}
	return flags
}

func named(kind EquivalenceKind, name string) (string, NameHash) {
	if kind == EquivalenceComplete {
		return name, NameHash{}
	}
	return "", NameHashOf(name)
}

// objectOf builds the TypeObject of a named type.
func objectOf(t *idl.Type, kind EquivalenceKind, lookup lookupFunc) (TypeObject, error) {
	object := TypeObject{Equivalence: kind}
	if kind == EquivalenceComplete {
		object.Name = t.Name
	}
	switch t.Kind {
	case idl.KindStruct:
		object.Kind = TypeKindStructure
		object.Flags = typeFlags(t)
		object.Base = Primitive(IdentifierNone)
		for _, member := range t.Members {
			id, err := identifierOf(member.Type, kind, lookup)
			if err != nil {
				return TypeObject{}, fmt.Errorf("xtypes: %s.%s: %w", t.Name, member.Name, err)
			}
			flags := MemberTryConstructDiscard
			if member.Optional {
				flags |= MemberOptional
			}
			if member.MustUnderstand {
				flags |= MemberMustUnderstand
			}
			if member.Key {
				flags |= MemberKey | MemberMustUnderstand
			}
			entry := Member{ID: member.ID, Flags: flags, Type: id}
			entry.Name, entry.NameHash = named(kind, member.Name)
			object.Members = append(object.Members, entry)
		}
	case idl.KindUnion:
		object.Kind = TypeKindUnion
		object.Flags = typeFlags(t)
		discriminator, err := identifierOf(t.Discriminator, kind, lookup)
		if err != nil {
			return TypeObject{}, fmt.Errorf("xtypes: %s discriminator: %w", t.Name, err)
		}
		object.Discriminator = discriminator
		object.DiscriminatorFlags = MemberTryConstructDiscard
		if t.KeyDiscriminator {
			object.DiscriminatorFlags |= MemberKey | MemberMustUnderstand
		}
		for _, unionCase := range t.Cases {
			id := Primitive(IdentifierNone)
			if unionCase.Type != nil {
				id, err = identifierOf(unionCase.Type, kind, lookup)
				if err != nil {
					return TypeObject{}, fmt.Errorf("xtypes: %s.%s: %w", t.Name, unionCase.Name, err)
				}
			}
			flags := MemberTryConstructDiscard
			if unionCase.Default {
				flags |= MemberDefault
			}
			entry := Member{ID: unionCase.ID, Flags: flags, Type: id}
			for _, label := range unionCase.Labels {
				if label < math.MinInt32 || label > math.MaxInt32 {
					return TypeObject{}, fmt.Errorf("xtypes: %s.%s: label %d does not fit 32 bits", t.Name, unionCase.Name, label)
				}
				entry.Labels = append(entry.Labels, int32(label))
			}
			entry.Name, entry.NameHash = named(kind, unionCase.Name)
			object.Members = append(object.Members, entry)
		}
	case idl.KindEnum:
		object.Kind = TypeKindEnum
		object.BitBound = t.BitBound
		for _, literal := range t.Literals {
			entry := Literal{Value: literal.Value}
			if literal.Default {
				entry.Flags = MemberDefault
			}
			entry.Name, entry.NameHash = named(kind, literal.Name)
			object.Literals = append(object.Literals, entry)
		}
	case idl.KindBitmask:
		object.Kind = TypeKindBitmask
		object.BitBound = t.BitBound
		for _, flag := range t.Flags {
			entry := Literal{Value: int32(flag.Position)}
			entry.Name, entry.NameHash = named(kind, flag.Name)
			object.Literals = append(object.Literals, entry)
		}
	case idl.KindAlias:
		object.Kind = TypeKindAlias
		related, err := identifierOf(t.Element, kind, lookup)
		if err != nil {
			return TypeObject{}, fmt.Errorf("xtypes: %s: %w", t.Name, err)
		}
		object.Related = related
	default:
		return TypeObject{}, fmt.Errorf("xtypes: %s type has no TypeObject", t.Kind)
	}
	return object, nil
}
