// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
)

// newPrimitiveCollection returns the typed-slice machine for a
// sequence (when sequence is set) or one array dimension of a
// primitive kind.
func newPrimitiveCollection(kind idl.Kind, sequence bool, bound, length uint32) machine {
	switch kind {
	case idl.KindBool:
		return primitiveCollection(boolCodec, sequence, bound, length)
	case idl.KindInt8:
		return primitiveCollection(int8Codec, sequence, bound, length)
	case idl.KindUint8, idl.KindByte, idl.KindChar:
		return primitiveCollection(uint8Codec, sequence, bound, length)
	case idl.KindInt16:
		return primitiveCollection(int16Codec, sequence, bound, length)
	case idl.KindUint16:
		return primitiveCollection(uint16Codec, sequence, bound, length)
	case idl.KindInt32:
		return primitiveCollection(int32Codec, sequence, bound, length)
	case idl.KindUint32:
		return primitiveCollection(uint32Codec, sequence, bound, length)
	case idl.KindInt64:
		return primitiveCollection(int64Codec, sequence, bound, length)
	case idl.KindUint64:
		return primitiveCollection(uint64Codec, sequence, bound, length)
	case idl.KindFloat32:
		return primitiveCollection(float32Codec, sequence, bound, length)
	case idl.KindFloat64:
		return primitiveCollection(float64Codec, sequence, bound, length)
	}
	panic(fmt.Sprintf("cdr: %s is not a primitive kind", kind))
}

func primitiveCollection[T comparable](codec scalarCodec[T], sequence bool, bound, length uint32) machine {
	if sequence {
		return &primitiveSequenceMachine[T]{codec: codec, bound: bound}
	}
	return &primitiveArrayMachine[T]{codec: codec, length: length}
}

// writeElements writes a typed slice, copying octets in bulk.
func writeElements[T comparable](b *buffer.Buffer, codec scalarCodec[T], values []T) {
	if octets, ok := any(values).([]byte); ok {
		b.WriteBytes(octets)
		return
	}
	for _, value := range values {
		codec.write(b, value)
	}
}

func readElements[T comparable](b *buffer.Buffer, codec scalarCodec[T], count int) ([]T, error) {
	if int64(count)*int64(codec.size) > int64(b.Remaining()) {
		return nil, corrupt("%d elements of %d bytes exceed the %d bytes remaining", count, codec.size, b.Remaining())
	}
	if codec.size == 1 {
		if _, octets := any(*new(T)).(byte); octets {
			data, err := b.ReadBytes(count)
			if err != nil {
				return nil, err
			}
			return any(data).([]T), nil
		}
	}
	values := make([]T, count)
	for index := range values {
		value, err := codec.read(b)
		if err != nil {
			return nil, err
		}
		values[index] = value
	}
	return values, nil
}

// primitiveSequenceMachine is the bulk path for sequences of
// primitives: a count followed by the packed elements, never a DHEADER.
type primitiveSequenceMachine[T comparable] struct {
	codec scalarCodec[T]
	bound uint32
}

func (m *primitiveSequenceMachine[T]) serialize(b *buffer.Buffer, value any, forKey bool) error {
	values, ok := value.([]T)
	if !ok {
		return invalidValue("sequence<%s> wants %T, got %T", m.codec.kind, []T(nil), value)
	}
	if m.bound > 0 && len(values) > int(m.bound) {
		return &BoundError{Type: fmt.Sprintf("sequence<%s, %d>", m.codec.kind, m.bound), Bound: m.bound, Length: len(values)}
	}
	b.WriteUint32(uint32(len(values)))
	writeElements(b, m.codec, values)
	return nil
}

func (m *primitiveSequenceMachine[T]) deserialize(b *buffer.Buffer) (any, error) {
	count, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	return readElements(b, m.codec, int(count))
}

func (m *primitiveSequenceMachine[T]) defaultValue() any { return []T{} }

func (m *primitiveSequenceMachine[T]) keyScan(scanner *keyScanner, size KeySize) KeySize {
	if m.bound == 0 {
		return unboundedKeySize
	}
	return scanner.bounded(scanner.fixed(size, 4, 1), m.codec.size, int(m.bound))
}

func (m *primitiveSequenceMachine[T]) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.streamSized(m.codec.size, skip)
	return nil
}

func (m *primitiveSequenceMachine[T]) minimumBytes() int { return 4 }

// primitiveArrayMachine is the bulk path for the innermost dimension of
// an array of primitives.
type primitiveArrayMachine[T comparable] struct {
	codec  scalarCodec[T]
	length uint32
}

func (m *primitiveArrayMachine[T]) serialize(b *buffer.Buffer, value any, forKey bool) error {
	values, ok := value.([]T)
	if !ok {
		return invalidValue("array of %s wants %T, got %T", m.codec.kind, []T(nil), value)
	}
	if len(values) != int(m.length) {
		return invalidValue("array of %s wants %d elements, got %d", m.codec.kind, m.length, len(values))
	}
	writeElements(b, m.codec, values)
	return nil
}

func (m *primitiveArrayMachine[T]) deserialize(b *buffer.Buffer) (any, error) {
	return readElements(b, m.codec, int(m.length))
}

func (m *primitiveArrayMachine[T]) defaultValue() any { return make([]T, m.length) }

func (m *primitiveArrayMachine[T]) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return scanner.fixed(size, m.codec.size, int(m.length))
}

func (m *primitiveArrayMachine[T]) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.stream(m.codec.size, int(m.length), skip)
	return nil
}

// sequenceMachine encodes a sequence of non-primitive elements as
// []any. In XCDR2 it is delimited unless the elements are enums or
// bitmasks.
type sequenceMachine struct {
	name      string
	element   machine
	bound     uint32
	delimited bool

	sized        sync.Once
	elementBytes bool
}

// elementsTakeBytes reports whether every element encodes to at least
// one byte, which lets the count be checked against the input left.
// Members are attached after construction, so it is computed on first
// use.
func (m *sequenceMachine) elementsTakeBytes() bool {
	m.sized.Do(func() { m.elementBytes = encodesBytes(m.element, make(map[machine]bool)) })
	return m.elementBytes
}

func (m *sequenceMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	values, ok := value.([]any)
	if !ok {
		return invalidValue("%s wants []any, got %T", m.name, value)
	}
	if m.bound > 0 && len(values) > int(m.bound) {
		return &BoundError{Type: m.name, Bound: m.bound, Length: len(values)}
	}
	header := beginDelimited(b, m.delimited && !forKey)
	b.WriteUint32(uint32(len(values)))
	for index, element := range values {
		if err := m.element.serialize(b, element, forKey); err != nil {
			return fmt.Errorf("[%d]: %w", index, err)
		}
	}
	endDelimited(b, header)
	return nil
}

func (m *sequenceMachine) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, m.delimited)
	if err != nil {
		return nil, err
	}
	count, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	capacity := int(count)
	if m.elementsTakeBytes() {
		if int64(count) > int64(b.Remaining()) {
			return nil, corrupt("%s count %d exceeds the %d bytes remaining", m.name, count, b.Remaining())
		}
	} else {
		capacity = min(capacity, b.Remaining()+1)
	}
	values := make([]any, 0, capacity)
	for index := uint32(0); index < count; index++ {
		value, err := m.element.deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", index, err)
		}
		values = append(values, value)
	}
	return values, finishDelimited(b, end)
}

func (m *sequenceMachine) defaultValue() any { return []any{} }

func (m *sequenceMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	if m.bound == 0 {
		return unboundedKeySize
	}
	return scanner.repeat(scanner.fixed(size, 4, 1), uint64(m.bound), true, func(size KeySize) KeySize {
		return m.element.keyScan(scanner, size)
	})
}

func (m *sequenceMachine) keyOps(compiler *keyCompiler, skip bool) error {
	body := func() error {
		return compiler.repeatSized(skip, func() error { return m.element.keyOps(compiler, skip) })
	}
	if m.delimited {
		return compiler.delimited(skip, body)
	}
	return body()
}

// arrayMachine encodes one dimension of an array whose innermost
// elements are not primitives, or an outer dimension of any array.
// Only the outermost dimension of a non-primitive array is delimited.
type arrayMachine struct {
	name      string
	element   machine
	length    uint32
	delimited bool
}

func (m *arrayMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	values, ok := value.([]any)
	if !ok {
		return invalidValue("%s wants []any, got %T", m.name, value)
	}
	if len(values) != int(m.length) {
		return invalidValue("%s wants %d elements, got %d", m.name, m.length, len(values))
	}
	header := beginDelimited(b, m.delimited && !forKey)
	for index, element := range values {
		if err := m.element.serialize(b, element, forKey); err != nil {
			return fmt.Errorf("[%d]: %w", index, err)
		}
	}
	endDelimited(b, header)
	return nil
}

func (m *arrayMachine) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, m.delimited)
	if err != nil {
		return nil, err
	}
	values := make([]any, m.length)
	for index := range values {
		if values[index], err = m.element.deserialize(b); err != nil {
			return nil, fmt.Errorf("[%d]: %w", index, err)
		}
	}
	return values, finishDelimited(b, end)
}

func (m *arrayMachine) defaultValue() any {
	values := make([]any, m.length)
	for index := range values {
		values[index] = m.element.defaultValue()
	}
	return values
}

func (m *arrayMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return scanner.repeat(size, uint64(m.length), false, func(size KeySize) KeySize {
		return m.element.keyScan(scanner, size)
	})
}

func (m *arrayMachine) keyOps(compiler *keyCompiler, skip bool) error {
	body := func() error {
		return compiler.repeatStatic(m.length, func() error { return m.element.keyOps(compiler, skip) })
	}
	if m.delimited {
		return compiler.delimited(skip, body)
	}
	return body()
}

// mapMachine encodes map[any]any as a count followed by key/value
// pairs in sorted key order.
type mapMachine struct {
	name      string
	key       machine
	value     machine
	bound     uint32
	delimited bool

	sized      sync.Once
	entryBytes bool
}

func (m *mapMachine) entriesTakeBytes() bool {
	m.sized.Do(func() {
		visiting := make(map[machine]bool)
		m.entryBytes = encodesBytes(m.key, visiting) || encodesBytes(m.value, visiting)
	})
	return m.entryBytes
}

func (m *mapMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	entries, ok := value.(map[any]any)
	if !ok {
		return invalidValue("%s wants map[any]any, got %T", m.name, value)
	}
	if m.bound > 0 && len(entries) > int(m.bound) {
		return &BoundError{Type: m.name, Bound: m.bound, Length: len(entries)}
	}
	header := beginDelimited(b, m.delimited && !forKey)
	b.WriteUint32(uint32(len(entries)))
	for _, key := range idl.SortedKeys(entries) {
		if err := m.key.serialize(b, key, forKey); err != nil {
			return fmt.Errorf("key %v: %w", key, err)
		}
		if err := m.value.serialize(b, entries[key], forKey); err != nil {
			return fmt.Errorf("[%v]: %w", key, err)
		}
	}
	endDelimited(b, header)
	return nil
}

func (m *mapMachine) deserialize(b *buffer.Buffer) (any, error) {
	end, err := readDelimiter(b, m.delimited)
	if err != nil {
		return nil, err
	}
	count, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	capacity := int(count)
	if m.entriesTakeBytes() {
		if int64(count) > int64(b.Remaining()) {
			return nil, corrupt("%s count %d exceeds the %d bytes remaining", m.name, count, b.Remaining())
		}
	} else {
		capacity = min(capacity, b.Remaining()+1)
	}
	entries := make(map[any]any, capacity)
	for index := uint32(0); index < count; index++ {
		key, err := m.key.deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", index, err)
		}
		value, err := m.value.deserialize(b)
		if err != nil {
			return nil, fmt.Errorf("[%v]: %w", key, err)
		}
		entries[key] = value
	}
	return entries, finishDelimited(b, end)
}

func (m *mapMachine) defaultValue() any { return map[any]any{} }

func (m *mapMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	if m.bound == 0 {
		return unboundedKeySize
	}
	return scanner.repeat(scanner.fixed(size, 4, 1), uint64(m.bound), true, func(size KeySize) KeySize {
		return m.value.keyScan(scanner, m.key.keyScan(scanner, size))
	})
}

func (m *mapMachine) keyOps(compiler *keyCompiler, skip bool) error {
	body := func() error {
		return compiler.repeatSized(skip, func() error {
			if err := m.key.keyOps(compiler, skip); err != nil {
				return err
			}
			return m.value.keyOps(compiler, skip)
		})
	}
	if m.delimited {
		return compiler.delimited(skip, body)
	}
	return body()
}

// beginDelimited reserves a DHEADER when enabled and returns its
// position, or -1.
func beginDelimited(b *buffer.Buffer, enabled bool) int {
	if !enabled {
		return -1
	}
	b.WriteUint32(0)
	return b.Tell() - 4
}

// endDelimited backpatches a DHEADER reserved by beginDelimited with
// the number of bytes written since.
func endDelimited(b *buffer.Buffer, header int) {
	if header >= 0 {
		b.PutUint32At(header, uint32(b.Tell()-header-4))
	}
}

// readDelimiter reads a DHEADER when present and returns the absolute
// end it declares, or -1.
func readDelimiter(b *buffer.Buffer, present bool) (int, error) {
	if !present {
		return -1, nil
	}
	length, err := b.ReadUint32()
	if err != nil {
		return 0, err
	}
	end := b.Tell() + int(length)
	if int64(length) > int64(b.Remaining()) {
		return 0, corrupt("delimited length %d exceeds the %d bytes remaining", length, b.Remaining())
	}
	return end, nil
}

// finishDelimited checks the cursor stayed inside a delimited region
// and moves it to the region's end.
func finishDelimited(b *buffer.Buffer, end int) error {
	if end < 0 {
		return nil
	}
	if b.Tell() > end {
		return corrupt("read %d bytes past the delimited end", b.Tell()-end)
	}
	b.Seek(end)
	return nil
}

func (m *primitiveArrayMachine[T]) minimumBytes() int { return int(m.length) * m.codec.size }

// encodesBytes reports whether every encoding of m takes at least one
// byte. Unknown machines report false, which only disables the count
// check.
func encodesBytes(m machine, visiting map[machine]bool) bool {
	switch m := m.(type) {
	case fixedSizer:
		return m.fixedSize() > 0
	case interface{ minimumBytes() int }:
		return m.minimumBytes() > 0
	case *stringMachine, *sequenceMachine, *mapMachine, *optionalMachine,
		*appendableStruct, *mutableStruct, *finalUnion, *appendableUnion, *mutableUnion:
		return true
	case *arrayMachine:
		return m.delimited || (m.length > 0 && encodesBytes(m.element, visiting))
	case *finalStruct:
		if visiting[m] {
			return false
		}
		visiting[m] = true
		defer delete(visiting, m)
		for _, member := range m.members {
			if encodesBytes(member.machine, visiting) {
				return true
			}
		}
	}
	return false
}
