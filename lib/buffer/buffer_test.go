// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestAlignmentPadsWithZeros(t *testing.T) {
	buffer := New()
	buffer.SetEndianness(LittleEndian)
	buffer.WriteUint8(0xFF)
	buffer.WriteUint32(0x01020304)

	want := []byte{0xFF, 0, 0, 0, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buffer.Bytes(), want) {
		t.Fatalf("Bytes = % x, want % x", buffer.Bytes(), want)
	}
}

func TestMaxAlignCapsEightByteAlignment(t *testing.T) {
	for _, test := range []struct {
		maxAlign int
		position int
	}{
		{maxAlign: 8, position: 8},
		{maxAlign: 4, position: 4},
	} {
		buffer := New()
		buffer.SetMaxAlign(test.maxAlign)
		buffer.WriteUint8(1)
		buffer.WriteUint64(2)
		if got := buffer.Tell() - 8; got != test.position {
			t.Errorf("maxAlign %d: uint64 written at %d, want %d", test.maxAlign, got, test.position)
		}
	}
}

func TestOriginShiftsAlignment(t *testing.T) {
	buffer := New()
	buffer.WriteBytes([]byte{0, 1, 0, 0})
	buffer.SetOrigin(4)
	buffer.WriteUint8(7)
	buffer.WriteUint64(9)

	// Relative to origin 4, the uint64 lands at relative offset 8.
	if buffer.Len() != 4+8+8 {
		t.Fatalf("Len = %d, want %d", buffer.Len(), 20)
	}
}

func TestReuseAfterResetKeepsPaddingZero(t *testing.T) {
	buffer := New()
	buffer.WriteBytes(bytes.Repeat([]byte{0xAA}, 16))
	buffer.Reset()
	buffer.WriteUint8(1)
	buffer.WriteUint32(2)

	if got := buffer.Bytes()[1:4]; !bytes.Equal(got, []byte{0, 0, 0}) {
		t.Fatalf("padding = % x, want zeros", got)
	}
}

func TestGrowBeyondInitialCapacity(t *testing.T) {
	buffer := New()
	payload := bytes.Repeat([]byte{0x5A}, defaultCapacity*3+1)
	buffer.WriteBytes(payload)
	if !bytes.Equal(buffer.Bytes(), payload) {
		t.Fatal("grown buffer lost content")
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	buffer := New()
	buffer.SetEndianness(BigEndian)
	buffer.WriteUint16(0x0102)
	buffer.WriteFloat64(3.5)
	buffer.WriteFloat32(-1.25)

	if got := buffer.Bytes()[:2]; !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Fatalf("uint16 bytes = % x, want 01 02", got)
	}

	reader := FromBytes(buffer.Bytes())
	reader.SetEndianness(BigEndian)
	short, err := reader.ReadUint16()
	if err != nil || short != 0x0102 {
		t.Fatalf("ReadUint16 = %#x, %v", short, err)
	}
	double, err := reader.ReadFloat64()
	if err != nil || double != 3.5 {
		t.Fatalf("ReadFloat64 = %v, %v", double, err)
	}
	single, err := reader.ReadFloat32()
	if err != nil || single != -1.25 {
		t.Fatalf("ReadFloat32 = %v, %v", single, err)
	}
	if reader.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", reader.Remaining())
	}
}

func TestPutUint32AtBackpatches(t *testing.T) {
	buffer := New()
	buffer.SetEndianness(LittleEndian)
	buffer.WriteUint32(0)
	buffer.WriteUint16(0x0A)
	buffer.PutUint32At(0, uint32(buffer.Len()-4))

	want := []byte{2, 0, 0, 0, 0x0A, 0}
	if !bytes.Equal(buffer.Bytes(), want) {
		t.Fatalf("Bytes = % x, want % x", buffer.Bytes(), want)
	}
}

func TestShortReadReturnsUnexpectedEOF(t *testing.T) {
	reader := FromBytes([]byte{1, 2, 3})
	if _, err := reader.ReadUint32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadUint32 error = %v, want io.ErrUnexpectedEOF", err)
	}
	reader.Seek(0)
	if _, err := reader.ReadBytes(4); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadBytes error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestParseEndianness(t *testing.T) {
	if got, err := ParseEndianness("big"); err != nil || got != BigEndian {
		t.Fatalf("ParseEndianness(big) = %v, %v", got, err)
	}
	if got, err := ParseEndianness("native"); err != nil || got != NativeEndianness() {
		t.Fatalf("ParseEndianness(native) = %v, %v", got, err)
	}
	if _, err := ParseEndianness("middle"); err == nil {
		t.Fatal("ParseEndianness(middle) succeeded")
	}
}
