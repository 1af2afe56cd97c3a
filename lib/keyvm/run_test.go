// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package keyvm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/xcdr/lib/buffer"
)

func runPayload(t *testing.T, program Program, payload []byte) []byte {
	t.Helper()
	key, err := RunPayload(program, payload, buffer.LittleEndian)
	if err != nil {
		t.Fatalf("RunPayload: %v\n%s", err, program)
	}
	return key
}

func TestRunFinalStructSkipsNonKeyString(t *testing.T) {
	program := Program{
		{Code: ByteSwap, Size: 4},
		{Code: StreamStatic, Size: 4, Count: 1},
		{Code: Stream4ByteSize, Size: 1, Skip: true},
		{Code: ByteSwap, Size: 2},
		{Code: StreamStatic, Size: 2, Count: 1},
		{Code: Done},
	}
	data := []byte{
		0x00, 0x07, 0x00, 0x00, // XCDR2 final, little-endian
		0x04, 0x03, 0x02, 0x01, // id
		0x03, 0x00, 0x00, 0x00, 'a', 'b', 0x00, // name
		0x00,       // padding
		0x06, 0x05, // x
	}
	key, err := Run(program, data)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	if !bytes.Equal(key, want) {
		t.Fatalf("key = % x, want % x", key, want)
	}
}

func TestRunUnionDispatch(t *testing.T) {
	program := Program{
		{Code: Union4Byte, Count: 2, Jump: 7, Signed: true},
		{Code: CaseLabel, Label: 1, Jump: 2},
		{Code: CaseDefault, Jump: 4},
		{Code: ByteSwap, Size: 2},
		{Code: StreamStatic, Size: 2, Count: 1},
		{Code: Jump, Jump: 2},
		{Code: Stream4ByteSize, Size: 1},
		{Code: Done},
	}

	labelled := runPayload(t, program, []byte{0x01, 0x00, 0x00, 0x00, 0x0b, 0x0a})
	if want := []byte{0, 0, 0, 1, 0x0a, 0x0b}; !bytes.Equal(labelled, want) {
		t.Fatalf("labelled case key = % x, want % x", labelled, want)
	}

	defaulted := runPayload(t, program, []byte{0xfb, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, 'z', 0x00})
	if want := []byte{0xff, 0xff, 0xff, 0xfb, 0, 0, 0, 2, 'z', 0}; !bytes.Equal(defaulted, want) {
		t.Fatalf("default case key = % x, want % x", defaulted, want)
	}
}

func TestRunMemberSelectFindsMembersOutOfOrder(t *testing.T) {
	program := Program{
		{Code: StructHeader},
		{Code: MemberSelect, Label: 2, Jump: 4},
		{Code: ByteSwap, Size: 4},
		{Code: StreamStatic, Size: 4, Count: 1},
		{Code: MemberSelectEnd},
		{Code: MemberSelect, Label: 1, Jump: 3},
		{Code: StreamStatic, Size: 1, Count: 1},
		{Code: MemberSelectEnd},
		{Code: AppendableJumpToEnd},
		{Code: Done},
	}
	payload := []byte{
		0x1c, 0x00, 0x00, 0x00, // DHEADER
		0x07, 0x00, 0x00, 0x40, 0x03, 0x00, 0x00, 0x00, 'x', 'y', 'z', 0x00, // unknown id 7, LC4
		0x01, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x00, 0x00, // id 1, LC0
		0x02, 0x00, 0x00, 0x20, 0x44, 0x33, 0x22, 0x11, // id 2, LC2
	}
	key := runPayload(t, program, payload)
	if want := []byte{0x11, 0x22, 0x33, 0x44, 0x0a}; !bytes.Equal(key, want) {
		t.Fatalf("key = % x, want % x", key, want)
	}
}

func TestRunMemberSelectMissing(t *testing.T) {
	program := Program{
		{Code: StructHeader},
		{Code: MemberSelect, Label: 9, Jump: 3},
		{Code: StreamStatic, Size: 1, Count: 1},
		{Code: MemberSelectEnd},
		{Code: AppendableJumpToEnd},
		{Code: Done},
	}
	payload := []byte{0x05, 0, 0, 0, 0x01, 0, 0, 0, 0x0a}
	if _, err := RunPayload(program, payload, buffer.LittleEndian); !errors.Is(err, ErrMissingMember) {
		t.Fatalf("RunPayload error = %v, want ErrMissingMember", err)
	}
}

func TestRunDelimitedSequence(t *testing.T) {
	program := Program{
		{Code: AppendableHeader},
		{Code: Repeat4ByteSize, Jump: 4},
		{Code: ByteSwap, Size: 2},
		{Code: StreamStatic, Size: 2, Count: 1},
		{Code: EndRepeat},
		{Code: AppendableJumpToEnd},
		{Code: Done},
	}
	key := runPayload(t, program, []byte{0x08, 0, 0, 0, 0x02, 0, 0, 0, 0x01, 0x00, 0x02, 0x00})
	if want := []byte{0, 0, 0, 2, 0, 1, 0, 2}; !bytes.Equal(key, want) {
		t.Fatalf("key = % x, want % x", key, want)
	}

	empty := runPayload(t, program, []byte{0x04, 0, 0, 0, 0, 0, 0, 0})
	if want := []byte{0, 0, 0, 0}; !bytes.Equal(empty, want) {
		t.Fatalf("empty key = % x, want % x", empty, want)
	}
}

func TestRunOptionalPresence(t *testing.T) {
	program := Program{
		{Code: Optional, Jump: 2},
		{Code: StreamStatic, Size: 1, Count: 1, Skip: true},
		{Code: StreamStatic, Size: 1, Count: 1},
		{Code: Done},
	}
	if key := runPayload(t, program, []byte{0x01, 0xaa, 0xbb}); !bytes.Equal(key, []byte{0xbb}) {
		t.Fatalf("present key = % x, want bb", key)
	}
	if key := runPayload(t, program, []byte{0x00, 0xbb}); !bytes.Equal(key, []byte{0xbb}) {
		t.Fatalf("absent key = % x, want bb", key)
	}
}

func TestRunBigEndianInputIsCopied(t *testing.T) {
	program := Program{
		{Code: ByteSwap, Size: 8},
		{Code: StreamStatic, Size: 8, Count: 1},
		{Code: Done},
	}
	data := []byte{0x00, 0x06, 0x00, 0x00, 1, 2, 3, 4, 5, 6, 7, 8}
	key, err := Run(program, data)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := data[4:]; !bytes.Equal(key, want) {
		t.Fatalf("key = % x, want % x", key, want)
	}
}

func TestRunRejectsBasicCDR(t *testing.T) {
	program := Program{{Code: Done}}
	if _, err := Run(program, []byte{0x00, 0x01, 0x00, 0x00}); !errors.Is(err, ErrUnsupportedInput) {
		t.Fatalf("Run error = %v, want ErrUnsupportedInput", err)
	}
}

func TestRunTruncatedInput(t *testing.T) {
	program := Program{{Code: StreamStatic, Size: 4, Count: 2}, {Code: Done}}
	if _, err := RunPayload(program, []byte{1, 2, 3, 4, 5}, buffer.LittleEndian); err == nil {
		t.Fatal("RunPayload succeeded on truncated input")
	}
}
