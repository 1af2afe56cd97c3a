// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cdr

import (
	"fmt"

	"github.com/bureau-foundation/xcdr/lib/buffer"
	"github.com/bureau-foundation/xcdr/lib/idl"
	"github.com/bureau-foundation/xcdr/lib/keyvm"
)

// scalarCodec reads and writes one primitive Go type.
type scalarCodec[T comparable] struct {
	kind  idl.Kind
	size  int
	write func(*buffer.Buffer, T)
	read  func(*buffer.Buffer) (T, error)

	// toInt64 and fromInt64 are nil for types that cannot
	// discriminate a union.
	toInt64   func(T) int64
	fromInt64 func(int64) T
	signed    bool
}

var (
	boolCodec = scalarCodec[bool]{
		kind: idl.KindBool, size: 1,
		write: func(b *buffer.Buffer, value bool) {
			if value {
				b.WriteUint8(1)
			} else {
				b.WriteUint8(0)
			}
		},
		read: func(b *buffer.Buffer) (bool, error) {
			value, err := b.ReadUint8()
			return value != 0, err
		},
		toInt64: func(value bool) int64 {
			if value {
				return 1
			}
			return 0
		},
		fromInt64: func(value int64) bool { return value != 0 },
	}
	int8Codec = scalarCodec[int8]{
		kind: idl.KindInt8, size: 1, signed: true,
		write: func(b *buffer.Buffer, value int8) { b.WriteUint8(uint8(value)) },
		read: func(b *buffer.Buffer) (int8, error) {
			value, err := b.ReadUint8()
			return int8(value), err
		},
		toInt64:   func(value int8) int64 { return int64(value) },
		fromInt64: func(value int64) int8 { return int8(value) },
	}
	uint8Codec = scalarCodec[uint8]{
		kind: idl.KindUint8, size: 1,
		write:     func(b *buffer.Buffer, value uint8) { b.WriteUint8(value) },
		read:      func(b *buffer.Buffer) (uint8, error) { return b.ReadUint8() },
		toInt64:   func(value uint8) int64 { return int64(value) },
		fromInt64: func(value int64) uint8 { return uint8(value) },
	}
	int16Codec = scalarCodec[int16]{
		kind: idl.KindInt16, size: 2, signed: true,
		write: func(b *buffer.Buffer, value int16) { b.WriteUint16(uint16(value)) },
		read: func(b *buffer.Buffer) (int16, error) {
			value, err := b.ReadUint16()
			return int16(value), err
		},
		toInt64:   func(value int16) int64 { return int64(value) },
		fromInt64: func(value int64) int16 { return int16(value) },
	}
	uint16Codec = scalarCodec[uint16]{
		kind: idl.KindUint16, size: 2,
		write:     func(b *buffer.Buffer, value uint16) { b.WriteUint16(value) },
		read:      func(b *buffer.Buffer) (uint16, error) { return b.ReadUint16() },
		toInt64:   func(value uint16) int64 { return int64(value) },
		fromInt64: func(value int64) uint16 { return uint16(value) },
	}
	int32Codec = scalarCodec[int32]{
		kind: idl.KindInt32, size: 4, signed: true,
		write: func(b *buffer.Buffer, value int32) { b.WriteUint32(uint32(value)) },
		read: func(b *buffer.Buffer) (int32, error) {
			value, err := b.ReadUint32()
			return int32(value), err
		},
		toInt64:   func(value int32) int64 { return int64(value) },
		fromInt64: func(value int64) int32 { return int32(value) },
	}
	uint32Codec = scalarCodec[uint32]{
		kind: idl.KindUint32, size: 4,
		write:     func(b *buffer.Buffer, value uint32) { b.WriteUint32(value) },
		read:      func(b *buffer.Buffer) (uint32, error) { return b.ReadUint32() },
		toInt64:   func(value uint32) int64 { return int64(value) },
		fromInt64: func(value int64) uint32 { return uint32(value) },
	}
	int64Codec = scalarCodec[int64]{
		kind: idl.KindInt64, size: 8, signed: true,
		write: func(b *buffer.Buffer, value int64) { b.WriteUint64(uint64(value)) },
		read: func(b *buffer.Buffer) (int64, error) {
			value, err := b.ReadUint64()
			return int64(value), err
		},
		toInt64:   func(value int64) int64 { return value },
		fromInt64: func(value int64) int64 { return value },
	}
	uint64Codec = scalarCodec[uint64]{
		kind: idl.KindUint64, size: 8,
		write:     func(b *buffer.Buffer, value uint64) { b.WriteUint64(value) },
		read:      func(b *buffer.Buffer) (uint64, error) { return b.ReadUint64() },
		toInt64:   func(value uint64) int64 { return int64(value) },
		fromInt64: func(value int64) uint64 { return uint64(value) },
	}
	float32Codec = scalarCodec[float32]{
		kind: idl.KindFloat32, size: 4,
		write: func(b *buffer.Buffer, value float32) { b.WriteFloat32(value) },
		read:  func(b *buffer.Buffer) (float32, error) { return b.ReadFloat32() },
	}
	float64Codec = scalarCodec[float64]{
		kind: idl.KindFloat64, size: 8,
		write: func(b *buffer.Buffer, value float64) { b.WriteFloat64(value) },
		read:  func(b *buffer.Buffer) (float64, error) { return b.ReadFloat64() },
	}
)

// scalarMachine encodes one primitive value at its natural alignment.
type scalarMachine[T comparable] struct {
	codec scalarCodec[T]
}

func (m *scalarMachine[T]) scalar()         {}
func (m *scalarMachine[T]) fixedSize() int { return m.codec.size }
func (m *scalarMachine[T]) signed() bool   { return m.codec.signed }

func (m *scalarMachine[T]) serialize(b *buffer.Buffer, value any, forKey bool) error {
	typed, ok := value.(T)
	if !ok {
		return invalidValue("%s wants %T, got %T", m.codec.kind, *new(T), value)
	}
	m.codec.write(b, typed)
	return nil
}

func (m *scalarMachine[T]) deserialize(b *buffer.Buffer) (any, error) {
	return m.codec.read(b)
}

func (m *scalarMachine[T]) defaultValue() any {
	var zero T
	return zero
}

func (m *scalarMachine[T]) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return scanner.fixed(size, m.codec.size, 1)
}

func (m *scalarMachine[T]) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.stream(m.codec.size, 1, skip)
	return nil
}

func (m *scalarMachine[T]) toDiscriminator(value any) (int64, error) {
	typed, ok := value.(T)
	if !ok || m.codec.toInt64 == nil {
		return 0, invalidValue("%s discriminator got %T", m.codec.kind, value)
	}
	return m.codec.toInt64(typed), nil
}

func (m *scalarMachine[T]) fromDiscriminator(discriminator int64) any {
	return m.codec.fromInt64(discriminator)
}

// newScalarMachine returns the machine for a primitive kind.
func newScalarMachine(kind idl.Kind) machine {
	switch kind {
	case idl.KindBool:
		return &scalarMachine[bool]{boolCodec}
	case idl.KindInt8:
		return &scalarMachine[int8]{int8Codec}
	case idl.KindUint8, idl.KindByte, idl.KindChar:
		return &scalarMachine[uint8]{uint8Codec}
	case idl.KindInt16:
		return &scalarMachine[int16]{int16Codec}
	case idl.KindUint16:
		return &scalarMachine[uint16]{uint16Codec}
	case idl.KindInt32:
		return &scalarMachine[int32]{int32Codec}
	case idl.KindUint32:
		return &scalarMachine[uint32]{uint32Codec}
	case idl.KindInt64:
		return &scalarMachine[int64]{int64Codec}
	case idl.KindUint64:
		return &scalarMachine[uint64]{uint64Codec}
	case idl.KindFloat32:
		return &scalarMachine[float32]{float32Codec}
	case idl.KindFloat64:
		return &scalarMachine[float64]{float64Codec}
	}
	panic(fmt.Sprintf("cdr: %s is not a primitive kind", kind))
}

// enumMachine encodes enumerators as signed integers: always 4 bytes
// in basic CDR, 1, 2, or 4 bytes by bit bound in XCDR2. Values without
// a declared enumerator decode unchanged.
type enumMachine struct {
	name    string
	width   int
	initial int32
}

func newEnumMachine(t *idl.Type, xcdr2 bool) *enumMachine {
	width := 4
	if xcdr2 {
		switch {
		case t.BitBound <= 8:
			width = 1
		case t.BitBound <= 16:
			width = 2
		}
	}
	return &enumMachine{name: t.Name, width: width, initial: t.DefaultLiteral().Value}
}

func (m *enumMachine) fixedSize() int { return m.width }
func (m *enumMachine) signed() bool   { return true }

func (m *enumMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	typed, ok := value.(int32)
	if !ok {
		return invalidValue("enum %s wants int32, got %T", m.name, value)
	}
	switch m.width {
	case 1:
		if typed < -128 || typed > 127 {
			return invalidValue("enum %s value %d does not fit 1 byte", m.name, typed)
		}
		b.WriteUint8(uint8(int8(typed)))
	case 2:
		if typed < -32768 || typed > 32767 {
			return invalidValue("enum %s value %d does not fit 2 bytes", m.name, typed)
		}
		b.WriteUint16(uint16(int16(typed)))
	default:
		b.WriteUint32(uint32(typed))
	}
	return nil
}

func (m *enumMachine) deserialize(b *buffer.Buffer) (any, error) {
	switch m.width {
	case 1:
		value, err := b.ReadUint8()
		return int32(int8(value)), err
	case 2:
		value, err := b.ReadUint16()
		return int32(int16(value)), err
	default:
		value, err := b.ReadUint32()
		return int32(value), err
	}
}

func (m *enumMachine) defaultValue() any { return m.initial }

func (m *enumMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return scanner.fixed(size, m.width, 1)
}

func (m *enumMachine) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.stream(m.width, 1, skip)
	return nil
}

func (m *enumMachine) toDiscriminator(value any) (int64, error) {
	typed, ok := value.(int32)
	if !ok {
		return 0, invalidValue("enum %s discriminator got %T", m.name, value)
	}
	return int64(typed), nil
}

func (m *enumMachine) fromDiscriminator(discriminator int64) any {
	return int32(discriminator)
}

// bitmaskMachine encodes a bitmask in the smallest unsigned width that
// holds its bit bound.
type bitmaskMachine struct {
	name     string
	bitBound uint16
	width    int
}

func newBitmaskMachine(t *idl.Type) *bitmaskMachine {
	width := 8
	switch {
	case t.BitBound <= 8:
		width = 1
	case t.BitBound <= 16:
		width = 2
	case t.BitBound <= 32:
		width = 4
	}
	return &bitmaskMachine{name: t.Name, bitBound: t.BitBound, width: width}
}

func (m *bitmaskMachine) fixedSize() int { return m.width }

func (m *bitmaskMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	typed, ok := value.(uint64)
	if !ok {
		return invalidValue("bitmask %s wants uint64, got %T", m.name, value)
	}
	if m.bitBound < 64 && typed>>m.bitBound != 0 {
		return invalidValue("bitmask %s value %#x sets bits beyond bound %d", m.name, typed, m.bitBound)
	}
	switch m.width {
	case 1:
		b.WriteUint8(uint8(typed))
	case 2:
		b.WriteUint16(uint16(typed))
	case 4:
		b.WriteUint32(uint32(typed))
	default:
		b.WriteUint64(typed)
	}
	return nil
}

func (m *bitmaskMachine) deserialize(b *buffer.Buffer) (any, error) {
	switch m.width {
	case 1:
		value, err := b.ReadUint8()
		return uint64(value), err
	case 2:
		value, err := b.ReadUint16()
		return uint64(value), err
	case 4:
		value, err := b.ReadUint32()
		return uint64(value), err
	default:
		return b.ReadUint64()
	}
}

func (m *bitmaskMachine) defaultValue() any { return uint64(0) }

func (m *bitmaskMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	return scanner.fixed(size, m.width, 1)
}

func (m *bitmaskMachine) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.stream(m.width, 1, skip)
	return nil
}

// stringMachine encodes a string as a 4-byte length that counts the
// terminating NUL, the bytes, then the NUL. Bounds are enforced when
// encoding; decoding accepts over-long strings.
type stringMachine struct {
	bound uint32
}

func (m *stringMachine) serialize(b *buffer.Buffer, value any, forKey bool) error {
	typed, ok := value.(string)
	if !ok {
		return invalidValue("string wants string, got %T", value)
	}
	if m.bound > 0 && len(typed) > int(m.bound) {
		return &BoundError{Type: fmt.Sprintf("string<%d>", m.bound), Bound: m.bound, Length: len(typed)}
	}
	b.WriteUint32(uint32(len(typed) + 1))
	b.WriteBytes([]byte(typed))
	b.WriteUint8(0)
	return nil
}

func (m *stringMachine) deserialize(b *buffer.Buffer) (any, error) {
	length, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int64(length) > int64(b.Remaining()) {
		return nil, corrupt("string length %d exceeds the %d bytes remaining", length, b.Remaining())
	}
	data, err := b.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data), nil
}

func (m *stringMachine) defaultValue() any { return "" }

func (m *stringMachine) keyScan(scanner *keyScanner, size KeySize) KeySize {
	if m.bound == 0 {
		return unboundedKeySize
	}
	return scanner.bounded(scanner.fixed(size, 4, 1), 1, int(m.bound)+1)
}

func (m *stringMachine) keyOps(compiler *keyCompiler, skip bool) error {
	compiler.emit(keyvm.Op{Code: keyvm.Stream4ByteSize, Size: 1, Skip: skip})
	return nil
}
