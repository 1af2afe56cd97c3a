// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
)

// Endianness selects the byte order of multi-byte primitives.
type Endianness uint8

const (
	// LittleEndian stores the least significant byte first. The
	// encapsulation header marks it with bit 0 of byte 1 set.
	LittleEndian Endianness = iota

	// BigEndian stores the most significant byte first. Key
	// serialization always uses big-endian.
	BigEndian
)

// String returns "little" or "big".
func (endianness Endianness) String() string {
	if endianness == BigEndian {
		return "big"
	}
	return "little"
}

// ByteOrder returns the encoding/binary order for this endianness.
func (endianness Endianness) ByteOrder() binary.ByteOrder {
	if endianness == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// NativeEndianness returns the byte order of the running platform.
func NativeEndianness() Endianness {
	probe := uint16(1)
	if binary.NativeEndian.AppendUint16(nil, probe)[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}

// ParseEndianness parses "little", "big", or "native".
func ParseEndianness(name string) (Endianness, error) {
	switch name {
	case "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	case "native", "":
		return NativeEndianness(), nil
	default:
		return 0, fmt.Errorf("unknown endianness %q", name)
	}
}

// defaultCapacity is the initial allocation for buffers created by New.
const defaultCapacity = 512

// Buffer is a growable byte store with an alignment-aware cursor.
// The zero value is not usable; create buffers with [New] or
// [FromBytes].
type Buffer struct {
	data []byte

	// length is the high-water mark of valid bytes. Reads never go
	// past it; writes past it extend it.
	length int

	position int
	origin   int
	maxAlign int
	order    binary.ByteOrder
	endian   Endianness
}

// New returns an empty buffer for writing, with maximum alignment 8
// and native byte order.
func New() *Buffer {
	buffer := &Buffer{
		data:     make([]byte, defaultCapacity),
		maxAlign: 8,
	}
	buffer.SetEndianness(NativeEndianness())
	return buffer
}

// FromBytes returns a buffer positioned at the start of data, for
// reading. The buffer aliases data; writes through it modify the
// caller's slice until a reallocation happens.
func FromBytes(data []byte) *Buffer {
	buffer := &Buffer{
		data:     data,
		length:   len(data),
		maxAlign: 8,
	}
	buffer.SetEndianness(NativeEndianness())
	return buffer
}

// Reset discards all content and restores the cursor and origin to
// zero. The allocation is kept for reuse.
func (b *Buffer) Reset() {
	b.length = 0
	b.position = 0
	b.origin = 0
}

// SetEndianness selects the byte order for subsequent primitive
// accesses.
func (b *Buffer) SetEndianness(endianness Endianness) {
	b.endian = endianness
	b.order = endianness.ByteOrder()
}

// Endianness returns the current byte order.
func (b *Buffer) Endianness() Endianness { return b.endian }

// SetMaxAlign sets the alignment cap: 8 for basic CDR, 4 for XCDR2.
func (b *Buffer) SetMaxAlign(maxAlign int) { b.maxAlign = maxAlign }

// MaxAlign returns the alignment cap.
func (b *Buffer) MaxAlign() int { return b.maxAlign }

// SetOrigin sets the position alignment is measured from.
func (b *Buffer) SetOrigin(origin int) { b.origin = origin }

// Origin returns the alignment origin.
func (b *Buffer) Origin() int { return b.origin }

// Tell returns the cursor position.
func (b *Buffer) Tell() int { return b.position }

// Seek moves the cursor to an absolute position.
func (b *Buffer) Seek(position int) {
	if position < 0 {
		panic(fmt.Sprintf("buffer: Seek(%d) to negative position", position))
	}
	b.position = position
}

// Len returns the number of valid bytes.
func (b *Buffer) Len() int { return b.length }

// Remaining returns the number of valid bytes after the cursor.
func (b *Buffer) Remaining() int {
	if b.position >= b.length {
		return 0
	}
	return b.length - b.position
}

// Bytes returns the valid bytes. The slice aliases the buffer and is
// invalidated by the next write that grows the allocation.
func (b *Buffer) Bytes() []byte { return b.data[:b.length] }

// Align advances the cursor to the next multiple of
// min(alignment, MaxAlign) relative to the origin. When writing, the
// skipped bytes become zero padding on the next write.
func (b *Buffer) Align(alignment int) {
	if alignment > b.maxAlign {
		alignment = b.maxAlign
	}
	if alignment <= 1 {
		return
	}
	offset := (b.position - b.origin) % alignment
	if offset < 0 {
		offset += alignment
	}
	if offset != 0 {
		b.position += alignment - offset
	}
}

// reserve makes room for n bytes at the cursor, zero-filling any gap
// between the previous high-water mark and the cursor, and returns the
// destination slice. The cursor and length advance past it.
func (b *Buffer) reserve(n int) []byte {
	end := b.position + n
	if end > len(b.data) {
		capacity := len(b.data) * 2
		if capacity < end {
			capacity = end
		}
		grown := make([]byte, capacity)
		copy(grown, b.data[:b.length])
		b.data = grown
	}
	if b.position > b.length {
		clear(b.data[b.length:b.position])
	}
	destination := b.data[b.position:end]
	b.position = end
	if end > b.length {
		b.length = end
	}
	return destination
}

// take returns the next n valid bytes and advances the cursor.
func (b *Buffer) take(n int) ([]byte, error) {
	if n < 0 || b.position+n > b.length {
		return nil, fmt.Errorf("reading %d bytes at offset %d of %d: %w", n, b.position, b.length, io.ErrUnexpectedEOF)
	}
	source := b.data[b.position : b.position+n]
	b.position += n
	return source, nil
}

// WriteUint8 writes one byte. Single bytes need no alignment.
func (b *Buffer) WriteUint8(value uint8) {
	b.reserve(1)[0] = value
}

// WriteUint16 aligns to 2 and writes value in the buffer's byte order.
func (b *Buffer) WriteUint16(value uint16) {
	b.Align(2)
	b.order.PutUint16(b.reserve(2), value)
}

// WriteUint32 aligns to 4 and writes value in the buffer's byte order.
func (b *Buffer) WriteUint32(value uint32) {
	b.Align(4)
	b.order.PutUint32(b.reserve(4), value)
}

// WriteUint64 aligns to 8 (capped by MaxAlign) and writes value.
func (b *Buffer) WriteUint64(value uint64) {
	b.Align(8)
	b.order.PutUint64(b.reserve(8), value)
}

// WriteFloat32 writes the IEEE 754 bits of value.
func (b *Buffer) WriteFloat32(value float32) {
	b.WriteUint32(math.Float32bits(value))
}

// WriteFloat64 writes the IEEE 754 bits of value.
func (b *Buffer) WriteFloat64(value float64) {
	b.WriteUint64(math.Float64bits(value))
}

// WriteBytes appends raw bytes at the cursor without alignment.
func (b *Buffer) WriteBytes(data []byte) {
	copy(b.reserve(len(data)), data)
}

// WriteZeros writes n zero bytes at the cursor.
func (b *Buffer) WriteZeros(n int) {
	clear(b.reserve(n))
}

// PutUint32At overwrites four bytes at an absolute position that has
// already been written. Used to backpatch length headers.
func (b *Buffer) PutUint32At(position int, value uint32) {
	if position < 0 || position+4 > b.length {
		panic(fmt.Sprintf("buffer: PutUint32At(%d) outside written range %d", position, b.length))
	}
	b.order.PutUint32(b.data[position:position+4], value)
}

// ReadUint8 reads one byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	source, err := b.take(1)
	if err != nil {
		return 0, err
	}
	return source[0], nil
}

// ReadUint16 aligns to 2 and reads a value in the buffer's byte order.
func (b *Buffer) ReadUint16() (uint16, error) {
	b.Align(2)
	source, err := b.take(2)
	if err != nil {
		return 0, err
	}
	return b.order.Uint16(source), nil
}

// ReadUint32 aligns to 4 and reads a value in the buffer's byte order.
func (b *Buffer) ReadUint32() (uint32, error) {
	b.Align(4)
	source, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return b.order.Uint32(source), nil
}

// ReadUint64 aligns to 8 (capped by MaxAlign) and reads a value.
func (b *Buffer) ReadUint64() (uint64, error) {
	b.Align(8)
	source, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return b.order.Uint64(source), nil
}

// ReadFloat32 reads an IEEE 754 single.
func (b *Buffer) ReadFloat32() (float32, error) {
	bits, err := b.ReadUint32()
	return math.Float32frombits(bits), err
}

// ReadFloat64 reads an IEEE 754 double.
func (b *Buffer) ReadFloat64() (float64, error) {
	bits, err := b.ReadUint64()
	return math.Float64frombits(bits), err
}

// ReadBytes returns a copy of the next n bytes without alignment.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	source, err := b.take(n)
	if err != nil {
		return nil, err
	}
	return slices.Clone(source), nil
}

// Skip advances the cursor by n bytes, failing if fewer are available.
func (b *Buffer) Skip(n int) error {
	_, err := b.take(n)
	return err
}
